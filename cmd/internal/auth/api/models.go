package authapi

type deviceRequest struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	FormFactor string `json:"form_factor"`
}

type loginRequest struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Device   deviceRequest `json:"device"`
}

type loginResponse struct {
	SessionID        string `json:"session_id"`
	Token            string `json:"token"`
	HeartbeatSeconds int64  `json:"heartbeat_seconds"`
}

type heartbeatResponse struct {
	PrincipalID string `json:"principal_id"`
	SessionID   string `json:"session_id"`
}

type logoutResponse struct {
	OK bool `json:"ok"`
}
