// Package contact models the "Fale Conosco" form: the fields a citizen
// fills in, their validation and the record handed to delivery sinks.
package contact

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pauloqxm/portal-comite/internal/domain/dedupe"
)

// ErrInvalidForm wraps every validation failure.
var ErrInvalidForm = errors.New("contact: invalid form")

// MaxDescription bounds the description in runes.
const MaxDescription = 2000

// OtherKind is the contact type that requires outro_contato.
const OtherKind = "Outro"

// Kinds are the accepted tipo_contato values.
var Kinds = []string{ //nolint:gochecknoglobals // form options
	"Solicitação de informação",
	"Denúncia/reclamação ambiental",
	"Sugestão para a gestão da bacia",
	"Proposta de parceria/projeto",
	"Imprensa/assessoria de comunicação",
	OtherKind,
}

// Channels are the accepted canal_resposta values.
var Channels = []string{"E-mail", "Telefone", "Correio físico"} //nolint:gochecknoglobals // form options

// PrivacyPolicyURL is linked from the LGPD consent checkbox.
const PrivacyPolicyURL = "https://www.cbhbanabuiu.com.br/politica-de-privacidade"

var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`) //nolint:gochecknoglobals // compiled once

// Form is a contact submission as received.
type Form struct {
	Name        string `json:"nome"`
	Email       string `json:"email"`
	Phone       string `json:"telefone"`
	Document    string `json:"cpf_cnpj"`
	CityState   string `json:"cidade_estado"`
	Kind        string `json:"tipo_contato"`
	OtherKind   string `json:"outro_contato"`
	Subject     string `json:"assunto"`
	Description string `json:"descricao"`
	Channel     string `json:"canal_resposta"`
	Consent     bool   `json:"lgpd_consentimento"`
	Newsletter  bool   `json:"receber_informativos"`
}

// ValidationError maps form field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Fields[n])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidForm }

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// Normalize trims every text field, applies the default type and channel
// and clears outro_contato unless the type is "Outro".
func (f Form) Normalize() Form {
	for _, p := range []*string{&f.Name, &f.Email, &f.Phone, &f.Document, &f.CityState, &f.Kind, &f.OtherKind, &f.Subject, &f.Description, &f.Channel} {
		*p = strings.TrimSpace(*p)
	}
	if f.Kind == "" {
		f.Kind = Kinds[0]
	}
	if f.Channel == "" {
		f.Channel = Channels[0]
	}
	if f.Kind != OtherKind {
		f.OtherKind = ""
	}
	return f
}

// Validate normalizes the form and reports every problem at once.
func (f Form) Validate() (Form, error) {
	f = f.Normalize()
	errs := map[string]string{}
	required := "Campo obrigatório."
	if f.Name == "" {
		errs["nome"] = required
	}
	switch {
	case f.Email == "":
		errs["email"] = required
	case !emailPattern.MatchString(f.Email):
		errs["email"] = "Por favor, insira um e-mail válido."
	}
	if f.CityState == "" {
		errs["cidade_estado"] = required
	}
	if f.Subject == "" {
		errs["assunto"] = required
	}
	switch {
	case f.Description == "":
		errs["descricao"] = required
	case utf8.RuneCountInString(f.Description) > MaxDescription:
		errs["descricao"] = fmt.Sprintf("Máximo de %d caracteres.", MaxDescription)
	}
	if !oneOf(f.Kind, Kinds) {
		errs["tipo_contato"] = "Opção inválida."
	}
	if !oneOf(f.Channel, Channels) {
		errs["canal_resposta"] = "Opção inválida."
	}
	if !f.Consent {
		errs["lgpd_consentimento"] = "É necessário aceitar os termos da LGPD."
	}
	if len(errs) > 0 {
		return f, &ValidationError{Fields: errs}
	}
	return f, nil
}

// Fingerprint identifies a submission for duplicate suppression.
func (f Form) Fingerprint() string {
	return dedupe.Fingerprint(f.Email, f.Subject, f.Description)
}

// Status of a receipt.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Message is a validated submission queued for delivery.
type Message struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"recebido_em"`
	Form
}

// Receipt is returned to the sender.
type Receipt struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"mensagem"`
}

// Feedback shown to the sender.
const (
	SuccessText = "Sua mensagem foi enviada com sucesso! Agradecemos o seu contato."
	FailureText = "Houve um problema ao enviar sua mensagem. Por favor, tente novamente mais tarde."
	InvalidText = "Por favor, preencha todos os campos obrigatórios e aceite os termos da LGPD."
)

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

// SheetRow lays the message out as the contact spreadsheet expects:
// timestamp followed by the twelve form fields. Free-text cells never start
// with a formula character.
func (m Message) SheetRow(loc *time.Location) []interface{} {
	return []interface{}{
		m.ReceivedAt.In(loc).Format("02/01/2006 15:04:05"),
		textCell(m.Name), textCell(m.Email), textCell(m.Phone), textCell(m.Document),
		textCell(m.CityState), m.Kind, textCell(m.OtherKind), textCell(m.Subject),
		textCell(m.Description), m.Channel, yesNo(m.Consent), yesNo(m.Newsletter),
	}
}

// textCell quotes values a spreadsheet would read as a formula.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// Summary is a short plain-text notification of the message.
func (m Message) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nova mensagem (Fale Conosco)\n")
	fmt.Fprintf(&b, "Tipo: %s", m.Kind)
	if m.OtherKind != "" {
		fmt.Fprintf(&b, " (%s)", m.OtherKind)
	}
	fmt.Fprintf(&b, "\nDe: %s <%s>\nCidade/UF: %s\nAssunto: %s\nResposta por: %s\n\n%s",
		m.Name, m.Email, m.CityState, m.Subject, m.Channel, m.Description)
	return b.String()
}
