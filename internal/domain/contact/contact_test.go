package contact_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	. "github.com/smartystreets/goconvey/convey"
)

func validForm() contact.Form {
	return contact.Form{
		Name:        " Maria Silva ",
		Email:       "maria@example.com",
		CityState:   "Quixadá/CE",
		Kind:        "Solicitação de informação",
		OtherKind:   "ignored",
		Subject:     "Vazão do Patu",
		Description: "Qual a vazão liberada?",
		Channel:     "E-mail",
		Consent:     true,
	}
}

func TestValidate(t *testing.T) {
	Convey("Given a complete form", t, func() {
		f, err := validForm().Validate()

		Convey("Then it is accepted and normalized", func() {
			So(err, ShouldBeNil)
			So(f.Name, ShouldEqual, "Maria Silva")
			So(f.OtherKind, ShouldBeEmpty)
		})
	})

	Convey("Given the Outro contact type", t, func() {
		in := validForm()
		in.Kind = contact.OtherKind
		f, err := in.Validate()
		So(err, ShouldBeNil)
		So(f.OtherKind, ShouldEqual, "ignored")
	})

	Convey("Given an empty form", t, func() {
		_, err := contact.Form{}.Validate()

		Convey("Then every missing field is reported", func() {
			So(errors.Is(err, contact.ErrInvalidForm), ShouldBeTrue)
			var verr *contact.ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			for _, k := range []string{"nome", "email", "cidade_estado", "assunto", "descricao", "lgpd_consentimento"} {
				So(verr.Fields, ShouldContainKey, k)
			}
			So(verr.Fields, ShouldNotContainKey, "tipo_contato")
			So(verr.Fields, ShouldNotContainKey, "canal_resposta")
		})
	})

	Convey("Given invalid values", t, func() {
		in := validForm()
		in.Email = "maria@example"
		in.Channel = "Fax"
		in.Description = strings.Repeat("á", contact.MaxDescription+1)
		_, err := in.Validate()
		var verr *contact.ValidationError
		So(errors.As(err, &verr), ShouldBeTrue)
		So(verr.Fields["email"], ShouldEqual, "Por favor, insira um e-mail válido.")
		So(verr.Fields, ShouldContainKey, "canal_resposta")
		So(verr.Fields, ShouldContainKey, "descricao")
		So(err.Error(), ShouldStartWith, "contact: invalid form: canal_resposta")
	})
}

func TestMessage(t *testing.T) {
	Convey("Given an accepted message", t, func() {
		f, err := validForm().Validate()
		So(err, ShouldBeNil)
		m := contact.Message{ID: "id-1", ReceivedAt: time.Date(2025, 1, 5, 15, 4, 5, 0, time.UTC), Form: f}

		Convey("Then the sheet row has thirteen cells in local time", func() {
			row := m.SheetRow(time.FixedZone("BRT", -3*3600))
			So(row, ShouldHaveLength, 13)
			So(row[0], ShouldEqual, "05/01/2025 12:04:05")
			So(row[1], ShouldEqual, "Maria Silva")
			So(row[11], ShouldEqual, "Sim")
			So(row[12], ShouldEqual, "Não")
		})

		Convey("Then cells that look like formulas are quoted", func() {
			msg := m
			msg.Name = "=HYPERLINK(\"http://x\")"
			msg.Description = "@SUM(A1)"
			msg.Phone = "-1"
			row := msg.SheetRow(time.UTC)
			So(row[1], ShouldEqual, "'=HYPERLINK(\"http://x\")")
			So(row[3], ShouldEqual, "'-1")
			So(row[9], ShouldEqual, "'@SUM(A1)")
			So(row[5], ShouldEqual, msg.CityState)
		})

		Convey("Then the summary names the sender and subject", func() {
			s := m.Summary()
			So(s, ShouldContainSubstring, "Maria Silva <maria@example.com>")
			So(s, ShouldContainSubstring, "Assunto: Vazão do Patu")
		})

		Convey("Then the fingerprint ignores case and spacing", func() {
			other := f
			other.Email = "MARIA@example.com "
			other.Description = "Qual a  vazão liberada?"
			So(other.Fingerprint(), ShouldEqual, f.Fingerprint())
		})
	})
}
