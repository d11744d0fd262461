package models

import "strings"

// Partition is the legal-entity bucket that segregates stock and archive data.
type Partition string

const (
	PartitionIP  Partition = "IP"
	PartitionOOO Partition = "OOO"
)

// Partitions lists every supported partition in display order.
var Partitions = []Partition{PartitionIP, PartitionOOO}

// legacyOOO is written by old imports that typed zeros instead of the letter O.
const legacyOOO = "000"

// ParsePartition maps user input and stored literals to a Partition.
// Latin and Cyrillic spellings are accepted, as is the legacy "000".
func ParsePartition(raw string) (Partition, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "IP", "ИП":
		return PartitionIP, nil
	case "OOO", "ООО", legacyOOO:
		return PartitionOOO, nil
	default:
		return "", ErrInvalidPartition
	}
}

// NormalizePartition converts a stored literal to its canonical form. Unknown
// values are returned unchanged so that callers can still display them.
func NormalizePartition(raw string) Partition {
	p, err := ParsePartition(raw)
	if err != nil {
		return Partition(raw)
	}
	return p
}

// StoredAliases returns every literal that may be persisted for the partition.
// Queries filter on all of them so legacy rows are never hidden.
func (p Partition) StoredAliases() []string {
	switch p {
	case PartitionIP:
		return []string{"IP", "ИП"}
	case PartitionOOO:
		return []string{"OOO", "ООО", legacyOOO}
	default:
		return []string{string(p)}
	}
}

// Label is the Russian legal-entity label used in exported documents.
func (p Partition) Label() string {
	switch p {
	case PartitionIP:
		return "ИП"
	case PartitionOOO:
		return "ООО"
	default:
		return string(p)
	}
}

func (p Partition) Valid() bool {
	return p == PartitionIP || p == PartitionOOO
}
