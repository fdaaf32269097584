package tsgen

import (
	"strconv"
	"strings"
)

// TransformRef rewrites an internal pointer into an indexed access type rooted
// at root: "#/components/schemas/Foo" becomes Root["components"]["schemas"]["Foo"].
// JSON pointer escapes are decoded so the path matches the emitted keys.
func TransformRef(root, pointer string) string {
	p := strings.TrimPrefix(pointer, "#")
	p = strings.TrimPrefix(p, "/")
	var b strings.Builder
	b.WriteString(root)
	if p == "" {
		return b.String()
	}
	for _, seg := range strings.Split(p, "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		b.WriteByte('[')
		b.WriteString(quote(seg))
		b.WriteByte(']')
	}
	return b.String()
}

// quote renders s as a double-quoted TypeScript string literal.
func quote(s string) string { return strconv.Quote(s) }

// quoteSingle renders s as a single-quoted TypeScript string literal.
func quoteSingle(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
