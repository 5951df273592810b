package diff

import (
	"fmt"
	"strings"
)

// Format returns a human-readable rendering of the plan, one section per
// zone with an operation per line.
func Format(p *Plan) string {
	var b strings.Builder

	total := 0
	for _, zp := range p.Zones {
		fmt.Fprintf(&b, "Zone %s\n", zp.Zone)

		if zp.FetchErr != nil {
			fmt.Fprintf(&b, "  ! skipped: %v\n", zp.FetchErr)
			continue
		}
		if zp.CreateZone {
			fmt.Fprintf(&b, "  + create zone\n")
			total++
		}
		for _, op := range zp.Creates {
			fmt.Fprintf(&b, "  + create %s %s = %q%s  [%s]\n",
				op.Spec.Type, op.Spec.Name, op.Spec.Value, formatOptions(op), op.Spec.FriendlyName)
			total++
		}
		for _, op := range zp.Updates {
			fmt.Fprintf(&b, "  ~ update %s %s: %s  [%s]\n",
				op.Spec.Type, op.Spec.Name, formatChanges(op), op.Spec.FriendlyName)
			total++
		}
		for _, op := range zp.Deletes {
			fmt.Fprintf(&b, "  - delete %s %s = %q\n", op.Remote.Type, op.Remote.Name, op.Remote.Value)
			total++
		}
		for _, w := range zp.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", w)
		}
		if zp.Empty() && len(zp.Warnings) == 0 {
			fmt.Fprintf(&b, "  in sync\n")
		}
	}

	fmt.Fprintf(&b, "\n%d operation(s) pending\n", total)
	return b.String()
}

func formatOptions(op Operation) string {
	var parts []string
	if op.Spec.TTL != nil {
		parts = append(parts, fmt.Sprintf("ttl=%d", *op.Spec.TTL))
	}
	if op.Spec.Proxied != nil {
		parts = append(parts, fmt.Sprintf("proxied=%t", *op.Spec.Proxied))
	}
	if op.Spec.Priority != nil {
		parts = append(parts, fmt.Sprintf("priority=%d", *op.Spec.Priority))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, " ") + ")"
}

func formatChanges(op Operation) string {
	s, r := op.Spec, op.Remote
	var parts []string
	if s.Value != r.Value {
		parts = append(parts, fmt.Sprintf("value %q -> %q", r.Value, s.Value))
	}
	if s.TTL != nil && (r.TTL == nil || *r.TTL != *s.TTL) {
		parts = append(parts, fmt.Sprintf("ttl %s -> %d", formatInt(r.TTL), *s.TTL))
	}
	if s.Proxied != nil && (r.Proxied == nil || *r.Proxied != *s.Proxied) {
		parts = append(parts, fmt.Sprintf("proxied %s -> %t", formatBool(r.Proxied), *s.Proxied))
	}
	if s.Priority != nil && (r.Priority == nil || *r.Priority != *s.Priority) {
		parts = append(parts, fmt.Sprintf("priority %s -> %d", formatInt(r.Priority), *s.Priority))
	}
	return strings.Join(parts, ", ")
}

func formatInt(v *int) string {
	if v == nil {
		return "unset"
	}
	return fmt.Sprintf("%d", *v)
}

func formatBool(v *bool) string {
	if v == nil {
		return "unset"
	}
	return fmt.Sprintf("%t", *v)
}
