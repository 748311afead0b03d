package domain

import "fmt"

// ReceiptID uniquely identifies a receipt across all producers. Producers mint
// their own IDs; the ledger enforces global uniqueness on insert.
type ReceiptID string

// ParseReceiptID validates a receipt identifier from external input.
func ParseReceiptID(s string) (ReceiptID, error) {
	if s == "" {
		return "", fmt.Errorf("receipt id must not be empty")
	}
	return ReceiptID(s), nil
}

func (id ReceiptID) String() string {
	return string(id)
}

func (id ReceiptID) IsNil() bool {
	return id == ""
}

// CredentialID identifies an issued credential. Minted by the issuing engine.
type CredentialID string

func (id CredentialID) String() string {
	return string(id)
}

func (id CredentialID) IsNil() bool {
	return id == ""
}
