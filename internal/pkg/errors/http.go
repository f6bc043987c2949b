package errors

import "net/http"

// ToHTTP converts an error into an HTTP status code plus the Status body
// to serialize: { code, reason, message, metadata }. A nil error maps to
// a bare 200 body so callers can use it unconditionally.
func ToHTTP(err error) (int, Status) {
	appErr := FromError(err)
	if appErr == nil {
		return http.StatusOK, Status{Code: int32(http.StatusOK)}
	}

	body := Status{
		Code:    appErr.Code,
		Reason:  appErr.Reason,
		Message: appErr.Message,
	}
	if appErr.Metadata != nil {
		body.Metadata = make(map[string]string, len(appErr.Metadata))
		for k, v := range appErr.Metadata {
			body.Metadata[k] = v
		}
	}

	code := int(appErr.Code)
	if code < 100 || code > 599 {
		code = UnknownCode
	}
	return code, body
}
