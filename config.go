package session

const (
	DefaultCredentialKey   = "token"
	DefaultLoginPath       = "/login"
	DefaultLandingPath     = "/dashboard"
	DefaultCallbackPath    = "/auth/callback"
	DefaultCredentialParam = "token"
	DefaultErrorParam      = "error"
	DefaultErrorIndicator  = "auth_failed"
)

var _ Config = Options{}

// Options is the default Config implementation
type Options struct {
	CredentialKey   string `mapstructure:"credential_key" json:"credential_key"`
	LoginPath       string `mapstructure:"login_path" json:"login_path"`
	LandingPath     string `mapstructure:"landing_path" json:"landing_path"`
	CallbackPath    string `mapstructure:"callback_path" json:"callback_path"`
	CredentialParam string `mapstructure:"credential_param" json:"credential_param"`
	ErrorParam      string `mapstructure:"error_param" json:"error_param"`
	ErrorIndicator  string `mapstructure:"error_indicator" json:"error_indicator"`
}

// DefaultOptions returns Options populated with package defaults.
func DefaultOptions() Options {
	return Options{
		CredentialKey:   DefaultCredentialKey,
		LoginPath:       DefaultLoginPath,
		LandingPath:     DefaultLandingPath,
		CallbackPath:    DefaultCallbackPath,
		CredentialParam: DefaultCredentialParam,
		ErrorParam:      DefaultErrorParam,
		ErrorIndicator:  DefaultErrorIndicator,
	}
}

func (o Options) GetCredentialKey() string {
	return orDefault(o.CredentialKey, DefaultCredentialKey)
}

func (o Options) GetLoginPath() string {
	return orDefault(o.LoginPath, DefaultLoginPath)
}

func (o Options) GetLandingPath() string {
	return orDefault(o.LandingPath, DefaultLandingPath)
}

func (o Options) GetCallbackPath() string {
	return orDefault(o.CallbackPath, DefaultCallbackPath)
}

func (o Options) GetCredentialParam() string {
	return orDefault(o.CredentialParam, DefaultCredentialParam)
}

func (o Options) GetErrorParam() string {
	return orDefault(o.ErrorParam, DefaultErrorParam)
}

func (o Options) GetErrorIndicator() string {
	return orDefault(o.ErrorIndicator, DefaultErrorIndicator)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func normalizeConfig(cfg Config) Config {
	if cfg == nil {
		return DefaultOptions()
	}
	return cfg
}
