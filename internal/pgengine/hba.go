package pgengine

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"

	"github.com/nimbusdb/controlplane/internal/model"
)

// NormalizeCIDR canonicalizes an IPv4 address or CIDR block for use in a
// host-based authentication rule. Bare addresses get a /32 suffix, and the
// unspecified address maps to the whole v4 space. IPv6 and malformed input
// are rejected.
func NormalizeCIDR(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if raw == "0.0.0.0" || raw == "0.0.0.0/0" {
		return "0.0.0.0/0", nil
	}
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return "", fmt.Errorf("parse cidr %q: %w", raw, err)
		}
		if !prefix.Addr().Is4() {
			return "", fmt.Errorf("not an IPv4 block: %q", raw)
		}
		return prefix.Masked().String(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", raw, err)
	}
	if !addr.Is4() {
		return "", fmt.Errorf("not an IPv4 address: %q", raw)
	}
	return addr.String() + "/32", nil
}

// BuildRuleset renders a complete pg_hba.conf from the active rules. The
// file is rebuilt from scratch on every sync so stale entries cannot
// survive a partial write.
func BuildRuleset(adminCIDR string, rules []model.AccessRule) string {
	var b strings.Builder
	b.WriteString("# Managed file. Manual edits are overwritten on the next sync.\n")
	b.WriteString("local   all             all                                     trust\n")
	b.WriteString("host    all             all             127.0.0.1/32            trust\n")
	b.WriteString("host    all             all             ::1/128                 trust\n")
	if adminCIDR != "" {
		b.WriteString(fmt.Sprintf("host    all             postgres        %s scram-sha-256\n", pad(adminCIDR)))
	}

	sorted := make([]model.AccessRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DBName != sorted[j].DBName {
			return sorted[i].DBName < sorted[j].DBName
		}
		return sorted[i].CIDR < sorted[j].CIDR
	})
	for _, rule := range sorted {
		b.WriteString(fmt.Sprintf("host    %s %s %s scram-sha-256\n",
			pad(rule.DBName), pad(rule.Role), pad(rule.CIDR)))
	}
	return b.String()
}

func pad(s string) string {
	if len(s) >= 15 {
		return s
	}
	return s + strings.Repeat(" ", 15-len(s))
}

// WriteRuleset writes the rendered ruleset to the engine's pg_hba.conf.
// Callers reload the engine configuration afterwards so the file takes
// effect.
func WriteRuleset(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write hba file: %w", err)
	}
	return nil
}
