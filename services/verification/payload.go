package verification

// Payload keys the engine reads from evidence.
const (
	PayloadDomainVerified = "domain_verified"
	PayloadDomain         = "domain"
	PayloadApplications   = "applications"
	PayloadItems          = "items"
)

// exportItems counts the entries of a structured export. Exports carry either
// an "applications" or a generic "items" list.
func exportItems(e Evidence) int {
	if e.Kind != EvidenceExport || e.Payload == nil {
		return 0
	}
	for _, key := range []string{PayloadApplications, PayloadItems} {
		if n := listLen(e.Payload[key]); n > 0 {
			return n
		}
	}
	return 0
}

func listLen(v any) int {
	switch list := v.(type) {
	case []any:
		return len(list)
	case []map[string]any:
		return len(list)
	case []string:
		return len(list)
	default:
		return 0
	}
}

// ExportAtLeast verifies once a structured export lists n entries.
func ExportAtLeast(n int) ContentCheck {
	return func(evidence []Evidence) (int, int) {
		best := 0
		for _, e := range evidence {
			best = max(best, exportItems(e))
		}
		return best, n
	}
}

// DomainVerified verifies once any evidence carries a DNS ownership proof.
func DomainVerified() ContentCheck {
	return func(evidence []Evidence) (int, int) {
		for _, e := range evidence {
			if v, ok := e.Payload[PayloadDomainVerified].(bool); ok && v {
				return 1, 1
			}
		}
		return 0, 1
	}
}
