package app

import "errors"

// ValidateSecurityConfig enforces the platform's security policy at startup.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("security policy: DSP_JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("security policy: DSP_JWT_SECRET too short (min 32 bytes)")
	}
	if cfg.JWTTTL <= 0 {
		return errors.New("security policy: DSP_JWT_TTL must be positive")
	}

	if cfg.Gitee.Enabled() && cfg.Gitee.RedirectURI == "" {
		return errors.New("security policy: DSP_OAUTH_GITEE_REDIRECT_URI is required when Gitee OAuth is configured")
	}
	if cfg.GitHub.Enabled() && cfg.GitHub.RedirectURI == "" {
		return errors.New("security policy: DSP_OAUTH_GITHUB_REDIRECT_URI is required when GitHub OAuth is configured")
	}

	return nil
}
