package httpresp

const (
	ErrInvalidFilter      = "invalid filter parameters"
	ErrMessageNotFound    = "message not found"
	ErrPropertyNotFound   = "property not found"
	ErrInvalidStatus      = "invalid status"
	ErrNameAndUnitNeeded  = "name and unit number are required"
	ErrPhoneAndBodyNeeded = "phone number and message are required"
	ErrMissingSenderBody  = "missing sender or message body"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// SendResultResponse reports the outcome of an explicit test send,
// including the vendor error code and a remediation hint on failure.
type SendResultResponse struct {
	Success bool   `json:"success"`
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewOKResponse() OKResponse {
	return OKResponse{OK: true}
}

func NewSendResult(sid string) SendResultResponse {
	return SendResultResponse{Success: true, SID: sid, Message: "message sent"}
}

func NewSendFailure(message string, code int, hint string) SendResultResponse {
	return SendResultResponse{Success: false, Message: message, Code: code, Hint: hint}
}
