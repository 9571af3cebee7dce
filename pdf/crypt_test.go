package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/security"
)

// pdfText renders the subset of objects an /Encrypt dictionary uses.
func pdfText(o raw.Object) string {
	switch v := o.(type) {
	case raw.NameObj:
		return "/" + v.Value()
	case raw.NumberObj:
		return fmt.Sprint(v.Int())
	case raw.BoolObj:
		return fmt.Sprint(v.V)
	case raw.StringObj:
		return fmt.Sprintf("<%x>", v.Bytes)
	case *raw.ArrayObj:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = pdfText(it)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *raw.DictObj:
		var sb strings.Builder
		sb.WriteString("<<")
		v.Each(func(k names.ID, val raw.Object) bool {
			fmt.Fprintf(&sb, "/%s %s", names.Default().String(k), pdfText(val))
			return true
		})
		sb.WriteString(">>")
		return sb.String()
	}
	return "null"
}

const contentText = "BT /F1 12 Tf (Hi) Tj ET"

func encryptedFile(t *testing.T, method security.Method) []byte {
	t.Helper()
	id := []byte("0123456789abcdef")
	h, err := security.New(method, "test", "owner", security.AllPermissions(), id)
	if err != nil {
		t.Fatalf("security: %v", err)
	}
	enc := func(num int, data []byte, class security.DataClass) []byte {
		out, err := h.Encrypt(num, 0, data, class, "")
		if err != nil {
			t.Fatalf("encrypt %d: %v", num, err)
		}
		return out
	}

	b := newBuilder(t, "1.7")
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[3 0 R]/Count 1>>")
	b.obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 4 0 R>>")
	b.stream(4, "", enc(4, []byte(contentText), security.DataClassStream))
	b.obj(5, fmt.Sprintf("<</Title <%x>>>", enc(5, []byte("secret"), security.DataClassString)))
	b.obj(6, pdfText(h.Dict()))
	return b.finish(fmt.Sprintf("/Size 7/Root 1 0 R/Info 5 0 R/Encrypt 6 0 R/ID[<%x><%x>]", id, id))
}

func TestEncryptedNeedsPassword(t *testing.T) {
	for _, method := range []security.Method{security.MethodRC4_128, security.MethodAES128, security.MethodAES256} {
		t.Run(method.String(), func(t *testing.T) {
			doc := openBytes(t, encryptedFile(t, method), Config{})
			if !doc.NeedsPassword() {
				t.Fatalf("document opened without a password")
			}
			page, err := doc.LoadPage(0)
			if err != nil {
				t.Fatalf("load page: %v", err)
			}
			if _, err := page.Contents(context.Background()); !errors.Is(err, security.ErrNotAuthenticated) {
				t.Fatalf("contents before authentication: %v", err)
			}

			if doc.Authenticate("wrong") {
				t.Fatalf("wrong password accepted")
			}
			if !doc.Authenticate("test") {
				t.Fatalf("user password rejected")
			}
			page, err = doc.LoadPage(0)
			if err != nil {
				t.Fatal(err)
			}
			data, err := page.Contents(context.Background())
			if err != nil {
				t.Fatalf("contents: %v", err)
			}
			if got := strings.TrimSpace(string(data)); got != contentText {
				t.Fatalf("contents = %q", got)
			}
			info, _ := doc.Info()
			title, _ := raw.AsString(get(info, names.Title))
			if string(title) != "secret" {
				t.Fatalf("title = %q", title)
			}
		})
	}
}

func TestEncryptedOpensWithPassword(t *testing.T) {
	doc := openBytes(t, encryptedFile(t, security.MethodAES128), Config{Password: "owner"})
	if doc.NeedsPassword() {
		t.Fatalf("owner password not applied")
	}
	if !doc.SecurityHandler().IsOwner() {
		t.Fatalf("expected owner access")
	}
	if p := doc.Permissions(); !p.Print || !p.Modify {
		t.Fatalf("permissions = %+v", p)
	}
	// The encryption dictionary itself is never decrypted.
	enc, _ := raw.AsDict(doc.Object(6, 0))
	u, _ := raw.AsString(get(enc, names.U))
	if len(u) < 32 {
		t.Fatalf("/U was altered: %x", u)
	}
}

func TestAuthenticationVisibleToClones(t *testing.T) {
	doc := openBytes(t, encryptedFile(t, security.MethodRC4_128), Config{})
	sib := doc.Clone()
	defer sib.Drop()
	info, _ := sib.Info()
	before, _ := raw.AsString(get(info, names.Title))
	if string(before) == "secret" {
		t.Fatalf("string decrypted without a password")
	}
	if !doc.Authenticate("test") {
		t.Fatal("authenticate")
	}
	info, _ = sib.Info()
	after, _ := raw.AsString(get(info, names.Title))
	if string(after) != "secret" {
		t.Fatalf("sibling title = %q", after)
	}
}
