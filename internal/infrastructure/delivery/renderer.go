// Package delivery renders regularization statements into tenant documents
// and hands them to a delivery channel.
package delivery

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
	"github.com/rentflow/backend/internal/domain/shared/valueobject"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const statementTemplate = `<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
<h1>Régularisation des charges {{.FiscalYear}}</h1>
<p>{{title .Tenant.DisplayName}}, lot {{.Statement.UnitIdentifier}}</p>
<p>Période d'occupation : du {{formatDate .Statement.OccupancyStart}} au {{formatDate .Statement.OccupancyEnd}} ({{.Statement.OccupiedDays}} / {{.Statement.DaysInYear}} jours)</p>
<table>
<tr><th>Poste</th><th>Total immeuble</th><th>Quote-part</th><th>Provisions versées</th></tr>
{{- range .Statement.Charges}}
<tr><td>{{.Label}}</td><td>{{formatCents .TotalChargeCents}}</td><td>{{formatCents .TenantShareCents}}</td><td>{{formatCents .ProvisionsPaidCents}}</td></tr>
{{- end}}
<tr><th>Total</th><td></td><td>{{formatCents .Statement.TotalShareCents}}</td><td>{{formatCents .Statement.TotalProvisionsPaidCents}}</td></tr>
</table>
{{- if gt .Statement.BalanceCents 0}}
<p>Solde restant dû : {{formatCents .Statement.BalanceCents}}</p>
{{- else if lt .Statement.BalanceCents 0}}
<p>Trop-perçu en votre faveur : {{formatCents (abs .Statement.BalanceCents)}}</p>
{{- else}}
<p>Aucun solde : vos provisions couvrent exactement vos charges.</p>
{{- end}}
</body>
</html>
`

// Document is a rendered statement ready to be delivered
type Document struct {
	To       string
	Subject  string
	FileName string
	Body     []byte
}

// Renderer turns a delivery request into an HTML document
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the statement template
func NewRenderer() (*Renderer, error) {
	titler := cases.Title(language.French)
	tmpl, err := template.New("statement").Funcs(template.FuncMap{
		"formatCents": formatCents,
		"formatDate":  formatDate,
		"title":       titler.String,
		"abs":         absCents,
	}).Parse(statementTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render builds the document of req
func (r *Renderer) Render(req regularizationapp.DeliveryRequest) (*Document, error) {
	subject := fmt.Sprintf("Régularisation des charges %d - lot %s", req.FiscalYear, req.Statement.UnitIdentifier)

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		regularizationapp.DeliveryRequest
		Subject string
	}{req, subject})
	if err != nil {
		return nil, fmt.Errorf("failed to render statement of lease %s: %w", req.Statement.LeaseID, err)
	}

	return &Document{
		To:       req.Tenant.Email,
		Subject:  subject,
		FileName: fmt.Sprintf("regularisation-%s-%d-%s.html", req.EntityID, req.FiscalYear, req.Statement.LeaseID),
		Body:     buf.Bytes(),
	}, nil
}

func formatCents(cents int64) string {
	return valueobject.FromCents(cents).FormatFR()
}

func absCents(cents int64) int64 {
	if cents < 0 {
		return -cents
	}
	return cents
}

// formatDate prints an ISO civil date as dd/mm/yyyy; anything else is
// returned unchanged.
func formatDate(iso string) string {
	t, err := time.Parse(time.DateOnly, iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}
