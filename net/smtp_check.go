package probenet

import (
	"context"
	"time"

	"github.com/bassosimone/runtimex"
	"golang.org/x/time/rate"

	"github.com/credprobe-dev/credprobe/application/config"
	"github.com/credprobe-dev/credprobe/application/schema"
	"github.com/credprobe-dev/credprobe/domain/entities"
	"github.com/credprobe-dev/credprobe/domain/errors"
	"github.com/credprobe-dev/credprobe/smtp"
)

// smtpProbeRequest is the validated shape of a probe config map.
type smtpProbeRequest struct {
	Host               string   `json:"host" validate:"required"`
	Port               int      `json:"port" validate:"required,min=1,max=65535"`
	Usernames          []string `json:"usernames" validate:"required,min=1"`
	Passwords          []string `json:"passwords" validate:"required,min=1"`
	AuthMethod         string   `json:"auth_method,omitempty"`
	UseTLS             bool     `json:"use_tls,omitempty"`
	TimeoutMs          int      `json:"timeout_ms,omitempty" validate:"min=0"`
	MaxRetries         int      `json:"max_retries,omitempty" validate:"min=0,max=65535"`
	EHLODomain         string   `json:"ehlo_domain,omitempty"`
	Parallelism        int      `json:"parallelism,omitempty" validate:"min=0,max=65535"`
	StopOnFirstSuccess bool     `json:"stop_on_first_success,omitempty"`
	RatePerSecond      float64  `json:"rate_per_second,omitempty" validate:"min=0"`
}

// SMTPProbeConfigSchema returns the JSON schema for the config map
// accepted by RunSMTPProbe. Hosts validate config documents against it
// before dispatching a run.
func SMTPProbeConfigSchema() []byte {
	return runtimex.PanicOnError1(schema.GenerateSchema(smtpProbeRequest{}))
}

// SMTPProbeOption is a functional option for configuring probe runs.
type SMTPProbeOption func(*smtpProbeConfig)

type smtpProbeConfig struct {
	proberOpts []smtp.ProberOption
}

// WithProberOptions forwards options to the underlying prober. This is
// how tests inject mock streams and hosts register callbacks.
func WithProberOptions(opts ...smtp.ProberOption) SMTPProbeOption {
	return func(c *smtpProbeConfig) {
		c.proberOpts = append(c.proberOpts, opts...)
	}
}

// RunSMTPProbe runs a credential probe against one SMTP server.
//
// Expected config fields:
//   - host (string, required): SMTP server hostname
//   - port (int, required): SMTP server port (typically 25, 465, or 587)
//   - usernames (list of string, required): outer credential sequence
//   - passwords (list of string, required): inner credential sequence
//   - auth_method (string, optional): LOGIN, PLAIN, CRAM-MD5, or AUTO. Default: AUTO
//   - use_tls (bool, optional): upgrade via STARTTLS before AUTH. Default: false
//   - timeout_ms (int, optional): per-I/O timeout in milliseconds (default: 30000)
//   - max_retries (int, optional): retry budget per credential (default: 3)
//   - ehlo_domain (string, optional): domain announced on EHLO (default: "localhost")
//   - parallelism (int, optional): concurrent workers (default: 1)
//   - stop_on_first_success (bool, optional): stop after the first hit. Default: false
//   - rate_per_second (float, optional): client-side attempt rate cap. Default: unlimited
//
// Returns a Result with:
//   - Status: "success" if any credential was accepted, "failure" if none,
//     "error" if the probe could not run
//   - Data: "attempts", "status", and "successes" (accepted outcomes)
func RunSMTPProbe(ctx context.Context, cfg config.Config, opts ...SMTPProbeOption) (entities.Result, error) {
	var req smtpProbeRequest
	if err := config.ValidateConfig(cfg, &req); err != nil {
		return entities.ResultError(errors.ToErrorDetail(&errors.ConfigError{Err: err})), nil
	}

	smtpCfg := smtp.DefaultConfig(req.Host)
	smtpCfg.Port = uint16(req.Port)
	smtpCfg.UseTLS = req.UseTLS
	if req.AuthMethod != "" {
		smtpCfg.AuthMethod = smtp.AuthMethod(req.AuthMethod)
	}
	if req.TimeoutMs > 0 {
		smtpCfg.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if req.MaxRetries > 0 {
		smtpCfg.MaxRetries = uint16(req.MaxRetries)
	}
	if req.EHLODomain != "" {
		smtpCfg.EHLODomain = req.EHLODomain
	}

	params := smtp.Params{
		Usernames:          req.Usernames,
		Passwords:          req.Passwords,
		Parallelism:        1,
		StopOnFirstSuccess: req.StopOnFirstSuccess,
	}
	if req.Parallelism > 0 {
		params.Parallelism = uint16(req.Parallelism)
	}

	probeCfg := smtpProbeConfig{}
	for _, opt := range opts {
		opt(&probeCfg)
	}
	proberOpts := probeCfg.proberOpts
	if req.RatePerSecond > 0 {
		proberOpts = append(proberOpts,
			smtp.WithRateLimiter(rate.NewLimiter(rate.Limit(req.RatePerSecond), 1)))
	}

	prober, err := smtp.NewProber(smtpCfg, params, proberOpts...)
	if err != nil {
		return entities.ResultError(errors.ToErrorDetail(err)), nil
	}

	start := time.Now()
	outcomes, status, runErr := prober.Run(ctx)
	metadata := entities.NewRunMetadata(start, time.Now()).WithToolVersion(Version)

	successes := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		successes = append(successes, map[string]any{
			"username":      o.Username,
			"password":      o.Password,
			"response_code": o.ResponseCode,
		})
	}
	resultData := map[string]any{
		"attempts":  prober.Attempts(),
		"status":    string(status),
		"successes": successes,
	}

	if runErr != nil {
		detail := errors.ToErrorDetail(runErr).WithDetails(resultData)
		return entities.ResultError(detail).WithMetadata(metadata), nil
	}

	if len(outcomes) > 0 {
		return entities.ResultSuccess("credentials accepted", resultData).WithMetadata(metadata), nil
	}
	return entities.ResultFailure("no credential accepted", resultData).WithMetadata(metadata), nil
}
