package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"careerloop-engine/pkg/util"

	"github.com/miekg/dns"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dns", fx.Provide(NewVerifier))

var ErrRecordNotFound = errors.New("no matching TXT record")

// ChallengeLabel is prefixed to a domain to find its ownership record.
const ChallengeLabel = "_careerloop"

// Verifier checks that a domain publishes the expected ownership code.
type Verifier interface {
	VerifyOwnership(ctx context.Context, domain, code string) error
}

type resolverVerifier struct {
	resolvers []string
	timeout   time.Duration
}

// NewVerifier queries public resolvers first and falls back to the system resolver.
func NewVerifier() Verifier {
	return &resolverVerifier{
		resolvers: []string{"1.1.1.1:53", "8.8.8.8:53"},
		timeout:   3 * time.Second,
	}
}

// ChallengeHost returns "_careerloop.<domain>." for a bare or URL-ish domain.
func ChallengeHost(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	return dns.Fqdn(ChallengeLabel + "." + d)
}

func (v *resolverVerifier) VerifyOwnership(ctx context.Context, domain, code string) error {
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("verification code cannot be empty")
	}

	host := ChallengeHost(domain)
	expected := util.VerificationRecord(code)
	zapLog := zap.L().With(zap.String("host", host))

	for _, resolver := range v.resolvers {
		if err := v.queryTXT(ctx, host, expected, resolver); err == nil {
			zapLog.Info("DNS TXT verification success", zap.String("resolver", resolver))
			return nil
		}
	}

	zapLog.Debug("falling back to system resolver")
	records, err := net.DefaultResolver.LookupTXT(ctx, host)
	if err != nil {
		return fmt.Errorf("system resolver TXT lookup failed: %w", err)
	}
	if matchRecord(records, expected) {
		return nil
	}
	return fmt.Errorf("%w for %s", ErrRecordNotFound, domain)
}

func (v *resolverVerifier) queryTXT(ctx context.Context, host, expected, resolver string) error {
	client := &dns.Client{Timeout: v.timeout}

	msg := dns.Msg{}
	msg.SetQuestion(host, dns.TypeTXT)

	resp, _, err := client.ExchangeContext(ctx, &msg, resolver)
	if err != nil {
		zap.L().Debug("DNS query failed", zap.String("resolver", resolver), zap.Error(err))
		return err
	}

	for _, ans := range resp.Answer {
		if txt, ok := ans.(*dns.TXT); ok && matchRecord(txt.Txt, expected) {
			return nil
		}
	}
	return ErrRecordNotFound
}

func matchRecord(records []string, expected string) bool {
	for _, r := range records {
		if strings.TrimSpace(r) == expected {
			return true
		}
	}
	return false
}
