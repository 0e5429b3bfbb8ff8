package config

import "time"

// RateLimitTier is one independently counted fixed window.
type RateLimitTier struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
}

// RateLimitConfig groups the guarded endpoint classes.  Each tier keeps its
// own counter per client IP; windows reset on wall-clock boundaries.
type RateLimitConfig struct {
	Enabled        bool
	Prefix         string
	Debug          bool
	API            RateLimitTier
	Auth           RateLimitTier
	PasswordReset  RateLimitTier
	PasswordChange RateLimitTier
	TokenRefresh   RateLimitTier
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:   envBool("RATE_LIMIT_DEBUG", false),
		API: tier("api", "RATE_LIMIT_API", 100, 15*time.Minute,
			"Too many requests from this IP, please try again later."),
		Auth: tier("auth", "RATE_LIMIT_AUTH", 5, 15*time.Minute,
			"Too many authentication attempts, please try again later."),
		PasswordReset: tier("password_reset", "RATE_LIMIT_PASSWORD_RESET", 3, time.Hour,
			"Too many password reset attempts, please try again later."),
		PasswordChange: tier("password_change", "RATE_LIMIT_PASSWORD_CHANGE", 3, 15*time.Minute,
			"You have changed your password too many times recently. Please wait 15 minutes before trying again."),
		TokenRefresh: tier("token_refresh", "RATE_LIMIT_TOKEN_REFRESH", 30, 15*time.Minute,
			"Too many refresh attempts. Please try again later."),
	}
	return cfg
}

// tier reads <prefix>_LIMIT and <prefix>_WINDOW overrides on top of defaults.
func tier(name, envPrefix string, limit int, window time.Duration, msg string) RateLimitTier {
	t := RateLimitTier{
		Name:    name,
		Limit:   envInt(envPrefix+"_LIMIT", limit),
		Window:  envDur(envPrefix+"_WINDOW", window),
		Message: msg,
	}
	if t.Limit < 1 {
		t.Limit = 1
	}
	if t.Window <= 0 {
		t.Window = window
	}
	return t
}
