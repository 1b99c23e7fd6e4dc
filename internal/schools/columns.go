// Package schools converts loosely structured school records into a fixed tabular schema.
package schools

// Contacts-derived columns. They are never produced by the generic resolver.
const (
	ColContacts       = "contacts"
	ColContactsPhones = "contacts_phones"
	ColContactsEmails = "contacts_emails"
	ColContactsJSON   = "contacts_json"
)

// declaredColumns is the order-significant output column contract.
var declaredColumns = []string{
	"address",
	ColContacts,
	ColContactsPhones,
	ColContactsEmails,
	ColContactsJSON,
	"hasJurnal",
	"hasMeeting",
	"id",
	"imageToken",
	"lat",
	"lng",
	"name",
	"regionId",
	"regionName",
	"schoolKind",
	"schoolKindId",
	"schoolType",
	"schoolTypeId",
	"siteUrl",
	"subjection",
	"subjectionId",
	"utisCode",
}

// DeclaredColumns returns a copy of the fixed column list.
func DeclaredColumns() []string {
	out := make([]string, len(declaredColumns))
	copy(out, declaredColumns)

	return out
}

// IsContactsColumn reports whether name is one of the four derived contacts columns.
func IsContactsColumn(name string) bool {
	switch name {
	case ColContacts, ColContactsPhones, ColContactsEmails, ColContactsJSON:
		return true
	}

	return false
}

func isDeclared(name string) bool {
	for _, c := range declaredColumns {
		if c == name {
			return true
		}
	}

	return false
}
