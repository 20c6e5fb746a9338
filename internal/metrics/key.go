package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScopeAll is the scope of agent-wide metrics.
const ScopeAll = "all"

// Key names one metric series: entity[.scope].name[:{label="value",...}].
// Pool metrics carry no scope. Entity and scope never contain '.' or ':'.
type Key struct {
	Entity string
	Scope  string
	Name   string
	Labels map[string]string
}

func PoolKey(pool, name string) Key {
	return Key{Entity: pool, Name: name}
}

func AgentKey(agent, scope, name string) Key {
	return Key{Entity: agent, Scope: scope, Name: name}
}

// With returns a copy of k with one more label.
func (k Key) With(label, value string) Key {
	labels := make(map[string]string, len(k.Labels)+1)
	for l, v := range k.Labels {
		labels[l] = v
	}
	labels[label] = value
	k.Labels = labels
	return k
}

// Token is shorthand for the token label.
func (k Key) Token(symbol string) Key {
	return k.With("token", symbol)
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Entity)
	if k.Scope != "" {
		b.WriteByte('.')
		b.WriteString(k.Scope)
	}
	b.WriteByte('.')
	b.WriteString(k.Name)
	if len(k.Labels) > 0 {
		names := make([]string, 0, len(k.Labels))
		for l := range k.Labels {
			names = append(names, l)
		}
		sort.Strings(names)
		b.WriteString(":{")
		for i, l := range names {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l)
			b.WriteByte('=')
			b.WriteString(strconv.Quote(k.Labels[l]))
		}
		b.WriteByte('}')
	}
	return b.String()
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	main, labels, hasLabels := strings.Cut(s, ":")
	var k Key
	parts := strings.Split(main, ".")
	switch len(parts) {
	case 2:
		k.Entity, k.Name = parts[0], parts[1]
	case 3:
		k.Entity, k.Scope, k.Name = parts[0], parts[1], parts[2]
	default:
		return Key{}, fmt.Errorf("metric key %q: want entity[.scope].name", s)
	}
	if k.Entity == "" || k.Name == "" || (len(parts) == 3 && k.Scope == "") {
		return Key{}, fmt.Errorf("metric key %q: empty component", s)
	}
	if !hasLabels {
		return k, nil
	}
	if !strings.HasPrefix(labels, "{") || !strings.HasSuffix(labels, "}") {
		return Key{}, fmt.Errorf("metric key %q: labels must be {k=v,...}", s)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(labels, "{"), "}")
	if strings.TrimSpace(body) == "" {
		return k, nil
	}
	k.Labels = make(map[string]string)
	for body != "" {
		name, rest, ok := strings.Cut(body, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.Contains(name, ",") {
			return Key{}, fmt.Errorf("metric key %q: bad label %q", s, body)
		}
		value, rest, err := labelValue(strings.TrimLeft(rest, " "))
		if err != nil {
			return Key{}, fmt.Errorf("metric key %q: label %s: %w", s, name, err)
		}
		k.Labels[name] = value
		rest = strings.TrimLeft(rest, " ")
		if rest != "" && rest[0] != ',' {
			return Key{}, fmt.Errorf("metric key %q: want ',' after label %s", s, name)
		}
		body = strings.TrimPrefix(rest, ",")
	}
	return k, nil
}

// labelValue reads one quoted or bare value off the front of s.
func labelValue(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s, ',')
		if end < 0 {
			return strings.TrimSpace(s), "", nil
		}
		return strings.TrimSpace(s[:end]), s[end:], nil
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			value, err := strconv.Unquote(s[:i+1])
			return value, s[i+1:], err
		}
	}
	return "", "", fmt.Errorf("unterminated quote")
}
