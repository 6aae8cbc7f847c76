package probenet

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"time"

	"github.com/credprobe-dev/credprobe/application/config"
	"github.com/credprobe-dev/credprobe/domain/entities"
	"github.com/credprobe-dev/credprobe/domain/errors"
	"github.com/credprobe-dev/credprobe/dnswire"
)

// RunDNSDecode decodes a captured DNS payload and summarizes it.
//
// Expected config fields (exactly one of):
//   - payload_b64 (string): the raw message, standard Base64
//   - payload_hex (string): the raw message, hex encoded
//
// Returns a Result with:
//   - Status: "success" if the payload decoded, "error" otherwise
//   - Data: header fields plus per-section summaries
func RunDNSDecode(_ context.Context, cfg config.Config) (entities.Result, error) {
	payload, err := decodePayload(cfg)
	if err != nil {
		return entities.ResultError(errors.ToErrorDetail(err)), nil
	}

	start := time.Now()
	msg, err := dnswire.Decode(payload)
	metadata := entities.NewRunMetadata(start, time.Now()).WithToolVersion(Version)
	if err != nil {
		detail := errors.ToErrorDetail(&errors.DNSWireError{Err: err})
		return entities.ResultError(detail).WithMetadata(metadata), nil
	}

	questions := make([]map[string]any, 0, len(msg.Questions))
	for _, q := range msg.Questions {
		questions = append(questions, map[string]any{
			"name":  q.Name,
			"type":  q.Type,
			"class": q.Class,
		})
	}

	resultData := map[string]any{
		"id":          msg.Header.ID,
		"flags":       msg.Header.Flags,
		"response":    msg.Header.QR(),
		"rcode":       msg.Header.RCode(),
		"questions":   questions,
		"answers":     summarizeRecords(msg.Answers),
		"authorities": summarizeRecords(msg.Authorities),
		"additionals": summarizeRecords(msg.Additionals),
	}

	return entities.ResultSuccess("DNS message decoded", resultData).WithMetadata(metadata), nil
}

func decodePayload(cfg config.Config) ([]byte, error) {
	if b64, ok := config.GetString(cfg, "payload_b64"); ok {
		payload, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, &errors.ConfigError{Field: "payload_b64", Err: err}
		}
		return payload, nil
	}
	if h, ok := config.GetString(cfg, "payload_hex"); ok {
		payload, err := hex.DecodeString(h)
		if err != nil {
			return nil, &errors.ConfigError{Field: "payload_hex", Err: err}
		}
		return payload, nil
	}
	return nil, &errors.ConfigError{Field: "payload_b64", Err: errMissingPayload}
}

var errMissingPayload = stderrors.New("one of payload_b64 or payload_hex is required")

func summarizeRecords(records []dnswire.ResourceRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rr := range records {
		out = append(out, map[string]any{
			"name":     rr.Name,
			"type":     rr.Type,
			"class":    rr.Class,
			"ttl":      rr.TTL,
			"rdlength": len(rr.Data),
		})
	}
	return out
}
