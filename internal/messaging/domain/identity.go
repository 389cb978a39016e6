package domain

// Identity the authenticated caller as supplied by the identity
// provider (JWT claims). The messaging core trusts these fields.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
}
