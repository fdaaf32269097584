package tsgen

import (
	"fmt"

	"github.com/mark3labs/openapi2ts/internal/contract"
)

// HandlersName is the name of the emitted handler registry interface.
const HandlersName = "Handlers"

// EmitHandlers renders c as `export interface Handlers<Context>` with one
// function type per operation. Parameter types index into the document
// interface, so the output is meant to sit next to Emit's.
func (g *Generator) EmitHandlers(c *contract.Contract) (string, error) {
	if c == nil {
		return "", fmt.Errorf("tsgen: nil contract")
	}
	t := g.newTranslator()

	body := &lineWriter{}
	for i := 0; i < len(c.Operations); {
		path := c.Operations[i].Path
		ops := &lineWriter{}
		for ; i < len(c.Operations) && c.Operations[i].Path == path; i++ {
			op := &c.Operations[i]
			t.at = "#/paths/" + escapePointer(op.Path) + "/" + string(op.Method)
			params := TransformRef(g.Root, t.at+"/parameters")
			fn := fmt.Sprintf("(ctx: Context, parameters: %s, requestBody: %s) => Promise<%s>",
				params, t.requestBodyType(op.RequestBody), t.responseType(op.Responses))
			ops.addLine("readonly "+string(op.Method)+": "+fn+";", 2)
		}
		body.block("readonly "+quote(path)+":", ops, 1)
	}
	if t.err != nil {
		return "", t.err
	}

	out := &lineWriter{}
	if body.empty() {
		out.addLine("export interface "+HandlersName+"<Context> {}", 0)
	} else {
		out.addLine("export interface "+HandlersName+"<Context> {", 0)
		out.append(body)
		out.addLine("}", 0)
	}
	return out.String(), nil
}

func (t *translator) requestBodyType(b *contract.Body) string {
	if b == nil {
		return "{}"
	}
	members := make([]string, 0, len(b.Media)+1)
	for _, m := range b.Media {
		members = append(members, "{ readonly contentType: "+quote(m.ContentType)+"; readonly content: "+t.translate(m.Schema)+" }")
	}
	if !b.Required || len(members) == 0 {
		members = append(members, "{}")
	}
	return unionOf(members)
}

func (t *translator) responseType(variants []contract.Variant) string {
	var members []string
	for _, v := range variants {
		code := "readonly httpCode: " + quote(v.HTTPCode)
		if len(v.Media) == 0 {
			members = append(members, "{ "+code+" }")
			continue
		}
		for _, m := range v.Media {
			members = append(members, "{ "+code+"; readonly contentType: "+quote(m.ContentType)+"; readonly content: "+t.translate(m.Schema)+" }")
		}
	}
	return unionOf(members)
}
