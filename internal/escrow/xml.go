package escrow

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
)

// Пространства имён RDE (RFC 8909, draft-arias-noguchi-dnrd-objects-mapping).
const (
	nsRDE       = "urn:ietf:params:xml:ns:rde-1.0"
	nsRDEHeader = "urn:ietf:params:xml:ns:rdeHeader-1.0"
	nsDomain    = "urn:ietf:params:xml:ns:rdeDomain-1.0"
	nsContact   = "urn:ietf:params:xml:ns:rdeContact-1.0"
	nsHost      = "urn:ietf:params:xml:ns:rdeHost-1.0"
)

// DepositHeader — данные заголовка депозита.
type DepositHeader struct {
	TLD       string
	Watermark time.Time
	Mode      domain.DepositMode
	Revision  int
	Objects   domain.ObjectCounts
}

type xmlDeposit struct {
	XMLName   xml.Name   `xml:"deposit"`
	XMLNS     string     `xml:"xmlns,attr"`
	Type      string     `xml:"type,attr"`
	ID        string     `xml:"id,attr"`
	Resend    int        `xml:"resend,attr"`
	Watermark string     `xml:"watermark"`
	Menu      xmlMenu    `xml:"rdeMenu"`
	Contents  xmlContent `xml:"contents"`
}

type xmlMenu struct {
	Version string   `xml:"version"`
	ObjURIs []string `xml:"objURI"`
}

type xmlContent struct {
	Header xmlHeader `xml:"header"`
}

type xmlHeader struct {
	XMLNS  string     `xml:"xmlns,attr"`
	TLD    string     `xml:"tld"`
	Counts []xmlCount `xml:"count"`
}

type xmlCount struct {
	URI   string `xml:"uri,attr"`
	Value int64  `xml:",chardata"`
}

// DepositID — детерминированный идентификатор депозита по watermark:
// миллисекунды в base32, верхний регистр.
func DepositID(watermark time.Time) string {
	return strings.ToUpper(strconv.FormatInt(watermark.UTC().UnixMilli(), 32))
}

// RenderDeposit рендерит XML депозита. Вывод зависит только от h.
func RenderDeposit(h DepositHeader) ([]byte, error) {
	uris := []string{nsDomain}
	counts := []xmlCount{{URI: nsDomain, Value: h.Objects.Domains}}
	if h.Mode == domain.DepositModeFull {
		uris = append(uris, nsContact, nsHost)
		counts = append(counts,
			xmlCount{URI: nsContact, Value: h.Objects.Contacts},
			xmlCount{URI: nsHost, Value: h.Objects.Hosts},
		)
	}

	doc := xmlDeposit{
		XMLNS:     nsRDE,
		Type:      string(h.Mode),
		ID:        DepositID(h.Watermark),
		Resend:    h.Revision,
		Watermark: h.Watermark.UTC().Format(time.RFC3339),
		Menu:      xmlMenu{Version: "1.0", ObjURIs: uris},
		Contents: xmlContent{Header: xmlHeader{
			XMLNS:  nsRDEHeader,
			TLD:    h.TLD,
			Counts: counts,
		}},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
