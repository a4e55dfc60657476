// Package templatename parses VM template names into their group, stream
// and build datestamp according to the naming conventions used by the
// template build pipelines.
package templatename

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Well-known group names.
const (
	GroupUpstream      = "upstream"
	GroupSprout        = "sprout"
	GroupRHEVMInternal = "rhevm-internal"
)

// ErrUnrecognized is returned when a name matches no known convention.
var ErrUnrecognized = errors.New("unrecognized template name")

// ExcludedGroups are groups of internally generated or ephemeral templates
// that are never tracked.
var ExcludedGroups = map[string]struct{}{
	GroupSprout:        {},
	GroupRHEVMInternal: {},
}

// Excluded reports whether templates of the group are never tracked.
func Excluded(group string) bool {
	_, ok := ExcludedGroups[group]
	return ok
}

// Info is a parsed template name.
type Info struct {
	Name   string
	Group  string
	Stream string
	// Datestamp is the build date; zero for groups without one.
	Datestamp time.Time
}

const datestampLayout = "20060102"

// convention is one naming pattern. group derives group and stream from the
// submatches of re.
type convention struct {
	re    *regexp.Regexp
	group func(m map[string]string) (group, stream string)
	dated bool
}

func downstream(m map[string]string) (string, string) {
	g := fmt.Sprintf("downstream-%s%sz", m["major"], m["minor"])
	return g, g
}

var conventions = []convention{
	{
		// cfme-5.10.0.33-20190312, cfme-5.9.4.2-201807091135-nodb
		re:    regexp.MustCompile(`^cfme-(?P<major>\d+)\.(?P<minor>\d+)(?:\.\d+)*-(?P<date>\d{8})(?:\d{4})?(?:[-_].*)?$`),
		group: downstream,
		dated: true,
	},
	{
		// cfme-59402-20180709. The compact form predates two-digit minor
		// versions: the minor is always one digit, so cfme-51001-... is
		// downstream-51z. Releases from 5.10 on use the dotted form.
		re:    regexp.MustCompile(`^cfme-(?P<major>\d)(?P<minor>\d)\d*-(?P<date>\d{8})(?:\d{4})?(?:[-_].*)?$`),
		group: downstream,
		dated: true,
	},
	{
		// miq-nightly-201807091200
		re: regexp.MustCompile(`^miq-nightly-(?P<date>\d{8})(?:\d{4})?(?:[-_].*)?$`),
		group: func(map[string]string) (string, string) {
			return GroupUpstream, GroupUpstream
		},
		dated: true,
	},
	{
		// miq-stable-gaprindashvili-4-20180709
		re: regexp.MustCompile(`^miq-stable-(?P<release>[a-z]+)(?:-\d+)*-(?P<date>\d{8})(?:\d{4})?(?:[-_].*)?$`),
		group: func(m map[string]string) (string, string) {
			g := GroupUpstream + "-" + m["release"]
			return g, g
		},
		dated: true,
	},
	{
		re: regexp.MustCompile(`^s[-_](?:tpl|appl)[-_]`),
		group: func(map[string]string) (string, string) {
			return GroupSprout, GroupSprout
		},
	},
	{
		re: regexp.MustCompile(`^(?:Blank|auto-tmp-.*|raw-.*)$`),
		group: func(map[string]string) (string, string) {
			return GroupRHEVMInternal, GroupRHEVMInternal
		},
	},
}

// Parse parses a template name. Names that match no convention, or whose
// datestamp is not a valid date, return an error wrapping ErrUnrecognized.
func Parse(name string) (Info, error) {
	for _, c := range conventions {
		match := c.re.FindStringSubmatch(name)
		if match == nil {
			continue
		}

		groups := make(map[string]string, len(match))
		for i, sub := range c.re.SubexpNames() {
			if sub != "" {
				groups[sub] = match[i]
			}
		}

		info := Info{Name: name}
		info.Group, info.Stream = c.group(groups)

		if c.dated {
			ds, err := time.Parse(datestampLayout, groups["date"])
			if err != nil {
				return Info{}, fmt.Errorf("%w: %s: bad datestamp %q", ErrUnrecognized, name, groups["date"])
			}
			info.Datestamp = ds
		}
		return info, nil
	}

	return Info{}, fmt.Errorf("%w: %s", ErrUnrecognized, name)
}
