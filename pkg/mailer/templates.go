package mailer

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// Template names a supplier email body.
type Template string

const (
	TemplateRestockRequested Template = "restock_requested"
	TemplateRestockCancelled Template = "restock_cancelled"
	TemplateRestockReceived  Template = "restock_received"
)

const restockRequestedBody = `Hello {{if .SupplierName}}{{.SupplierName}}{{else}}there{{end}},

We would like to restock {{.ProductName}}.

Requested quantities: {{.Requested}}
{{- if .Note}}
Note: {{.Note}}
{{- end}}

Your restock code is: {{.Code}}

Enter this code when you deliver the goods. It expires on {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.
`

const restockCancelledBody = `Hello {{if .SupplierName}}{{.SupplierName}}{{else}}there{{end}},

The restock request for {{.ProductName}} has been cancelled.
{{- if .Code}}
The code {{.Code}} is no longer valid.
{{- else}}
The code ending {{.CodeHint}} is no longer valid.
{{- end}}
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}

Please do not ship the requested quantities ({{.Requested}}).
`

const restockReceivedBody = `Hello {{if .SupplierName}}{{.SupplierName}}{{else}}there{{end}},

We have recorded your restock delivery for {{.ProductName}}.

Received quantities: {{.Received}}
Recorded at: {{.ReceivedAt.Format "2006-01-02 15:04 MST"}}

Thank you.
`

var templates = template.Must(template.New("mailer").Option("missingkey=error").Parse(
	`{{define "restock_requested"}}` + restockRequestedBody + `{{end}}` +
		`{{define "restock_cancelled"}}` + restockCancelledBody + `{{end}}` +
		`{{define "restock_received"}}` + restockReceivedBody + `{{end}}`,
))

// Render executes the named template against data.
func Render(name Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(name), data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// RestockRequestedData feeds TemplateRestockRequested.
type RestockRequestedData struct {
	SupplierName string
	ProductName  string
	Requested    types.SizeQuantities
	Note         string
	Code         string
	ExpiresAt    time.Time
}

// RestockCancelledData feeds TemplateRestockCancelled. Code is empty when the stored
// ciphertext could not be decrypted; the hint is used instead.
type RestockCancelledData struct {
	SupplierName string
	ProductName  string
	Requested    types.SizeQuantities
	Code         string
	CodeHint     string
	Reason       string
}

// RestockReceivedData feeds TemplateRestockReceived.
type RestockReceivedData struct {
	SupplierName string
	ProductName  string
	Received     types.SizeQuantities
	ReceivedAt   time.Time
}
