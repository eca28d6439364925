package environment

import "strings"

// CanonicalName produces the symbol name an export is addressed by across
// module boundaries: the owning module's name, a '#' separator, and the
// export name, with every byte outside [A-Za-z0-9_] in either component
// percent-encoded so that a '#' or '%' occurring in either name can't be
// confused with the separator.
func CanonicalName(moduleName, exportName string) string {
	var sb strings.Builder
	sb.Grow(len(moduleName) + len(exportName) + 1)
	percentEncode(&sb, moduleName)
	sb.WriteByte('#')
	percentEncode(&sb, exportName)
	return sb.String()
}

// percentEncode escapes every byte outside [A-Za-z0-9_] as '%' followed by
// two lowercase hex digits, so a canonical name's module and export
// components can always be split unambiguously on the first '#'.
func percentEncode(sb *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteString(hexDigits[c>>4 : c>>4+1])
			sb.WriteString(hexDigits[c&0xf : c&0xf+1])
		}
	}
}

const hexDigits = "0123456789abcdef"
