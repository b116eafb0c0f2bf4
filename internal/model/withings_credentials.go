package model

// SettingKeyWithingsCredentials is the settings row holding the app credentials.
const SettingKeyWithingsCredentials = "withings_credentials"

// WithingsCredentials are the app-level OAuth credentials registered with Withings.
// ClientSecret is never logged nor returned to clients unmasked.
type WithingsCredentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri"`
	Scopes       []string `json:"scopes"`
}

// MissingField names the first required credential field that is empty, or "".
func (c WithingsCredentials) MissingField() string {
	switch {
	case c.ClientID == "":
		return "client_id"
	case c.ClientSecret == "":
		return "client_secret"
	case c.RedirectURI == "":
		return "redirect_uri"
	}
	return ""
}
