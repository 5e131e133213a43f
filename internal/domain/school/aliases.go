package school

import (
	"fmt"
	"strings"
)

type Field string

const (
	FieldName         Field = "name"
	FieldPostalCode   Field = "postal_code"
	FieldAddress      Field = "address"
	FieldNeighborhood Field = "neighborhood"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldPhone        Field = "phone"
	FieldEmail        Field = "email"
	FieldSchoolType   Field = "school_type"
)

// fieldAliases lists the accepted source headers for each canonical field, in
// priority order. Headers are compared after headerKey folding.
var fieldAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldName, []string{"name", "nome", "school_name", "nome_escola", "nome da escola", "escola", "school", "instituicao"}},
	{FieldPostalCode, []string{"cep", "postal_code", "postal code", "zip", "zip_code", "zipcode", "codigo_postal"}},
	{FieldAddress, []string{"address", "endereco", "logradouro", "rua", "street"}},
	{FieldNeighborhood, []string{"neighborhood", "bairro", "district"}},
	{FieldCity, []string{"city", "cidade", "municipio", "town"}},
	{FieldState, []string{"state", "estado", "uf", "region", "regiao"}},
	{FieldPhone, []string{"phone", "telefone", "tel", "fone", "celular", "phone_number"}},
	{FieldEmail, []string{"email", "e-mail", "e_mail", "mail", "email_address"}},
	{FieldSchoolType, []string{"school_type", "type", "tipo", "rede", "dependencia", "dependencia_administrativa", "categoria"}},
}

// HeaderIndex maps canonical fields to column positions of one file.
type HeaderIndex map[Field]int

// ResolveHeader evaluates the alias table once against a file header. A
// header without a name column is rejected.
func ResolveHeader(header []string) (HeaderIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if key == "" {
			continue
		}
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	index := HeaderIndex{}
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			if pos, ok := positions[headerKey(alias)]; ok {
				index[entry.field] = pos
				break
			}
		}
	}

	if _, ok := index[FieldName]; !ok {
		return nil, fmt.Errorf("%w: no school name column in header %q", ErrInvalidFormat, header)
	}
	return index, nil
}

// Record maps a data row onto a RawSchoolRecord.
func (h HeaderIndex) Record(row int64, cells []string) RawSchoolRecord {
	return RawSchoolRecord{
		Row:          row,
		Name:         h.value(cells, FieldName),
		PostalCode:   h.value(cells, FieldPostalCode),
		Address:      h.value(cells, FieldAddress),
		Neighborhood: h.value(cells, FieldNeighborhood),
		City:         h.value(cells, FieldCity),
		State:        h.value(cells, FieldState),
		Phone:        h.value(cells, FieldPhone),
		Email:        h.value(cells, FieldEmail),
		TypeHint:     h.value(cells, FieldSchoolType),
	}
}

func (h HeaderIndex) value(cells []string, field Field) string {
	pos, ok := h[field]
	if !ok || pos >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[pos])
}

func headerKey(h string) string {
	h = strings.ToLower(FoldAccents(strings.TrimSpace(h)))
	h = strings.Trim(h, "\"'")
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}
