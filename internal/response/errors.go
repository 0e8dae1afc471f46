package response

// errCodeMask isolates IPROTO's server-specific error number, stripping the
// IPROTO_TYPE_ERROR flag (0x8000) that marks a status code as an error at
// all.
const errCodeMask = 0x7fff

// Code returns the server-specific error number carried in e's status,
// stripping the IPROTO_TYPE_ERROR high bit.
func (e *ServerError) Code() uint32 {
	return uint32(e.Status) & errCodeMask
}
