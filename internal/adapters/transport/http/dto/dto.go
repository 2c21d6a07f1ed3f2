package dto

type RegisterDTO struct {
	FirstName       string `json:"first_name"       validate:"max=100"`
	LastName        string `json:"last_name"        validate:"max=100"`
	Email           string `json:"email"            validate:"required,email,max=254"`
	Password        string `json:"password"         validate:"required,max=72"`
	PasswordConfirm string `json:"password_confirm"`
}

type LoginDTO struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TwoFactorDTO.Secret is accepted for older clients and ignored: the
// provisional secret is kept server-side.
type TwoFactorDTO struct {
	ID     string `json:"id"     validate:"required,uuid"`
	Code   string `json:"code"   validate:"required,numeric,len=6"`
	Secret string `json:"secret"`
}

type FederatedLoginDTO struct {
	Provider      string `json:"provider"       validate:"omitempty,oneof=google telegram telegram-widget"`
	ProviderToken string `json:"provider_token" validate:"required"`
}

type ForgotDTO struct {
	Email string `json:"email"`
}

type ResetDTO struct {
	Token           string `json:"token"            validate:"required"`
	Password        string `json:"password"         validate:"required,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}
