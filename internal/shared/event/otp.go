package event

const OtpIssuedDestination string = "otp_issued"
const OtpVerifiedDestination string = "otp_verified"

type OtpIssuedMessage struct {
	OtpID     int64  `json:"otp_id"`
	OwnerKey  string `json:"owner_key"`
	Channel   string `json:"channel"`
	ExpiresAt int64  `json:"expires_at"`
}

type OtpVerifiedMessage struct {
	OtpID    int64  `json:"otp_id"`
	OwnerKey string `json:"owner_key"`
}
