package inbound

import "strconv"

type GenerateRequest struct {
	ResourceKey string `json:"resource_key,omitempty"`
}

type GenerateResponse struct {
	ID           string `json:"id"`
	AttemptsLeft int    `json:"attempts_left"`

	headers map[string]string
}

func (GenerateResponse) Message() string {
	return "A one-time code has been generated."
}

func (r GenerateResponse) Headers() map[string]string {
	return r.headers
}

type GenerateSMSRequest struct {
	MobileNum string `json:"mobile_num"`
}

type GenerateSMSResponse struct {
	ID           string `json:"id"`
	AttemptsLeft int    `json:"attempts_left"`

	headers map[string]string
}

func (GenerateSMSResponse) Message() string {
	return "A one-time code has been sent to your mobile number."
}

func (r GenerateSMSResponse) Headers() map[string]string {
	return r.headers
}

type VerifyRequest struct {
	ID      string `json:"id"`
	OtpCode string `json:"otp_code"`
}

type VerifyResponse struct {
	Success bool `json:"success"`
}

func (r VerifyResponse) Message() string {
	if r.Success {
		return "The code has been verified."
	}
	return "The code could not be verified."
}

type RetrieveRequest struct {
	ClientSecret string `json:"client_secret"`
	ClientKey    string `json:"client_key"`
	ResourceKey  string `json:"resource_key"`
}

type RetrieveResponse struct {
	ID           string `json:"id"`
	EncryptedOtp string `json:"encrypted_otp"`
	PublicKey    string `json:"public_key"`
}

func (RetrieveResponse) Message() string {
	return "The encrypted code has been retrieved."
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
