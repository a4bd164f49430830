package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content hashes. The version suffix allows changing
// the encoding without colliding with old hashes.
const (
	DomainNode    = "rxmigrate/node/v1"
	DomainRuleSet = "rxmigrate/ruleset/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NodeHash hashes the structural encoding of a tree.
func NodeHash(n Node) string {
	data, err := MarshalCanonical(Encode(n))
	if err != nil {
		// Encode only produces canonical-safe values.
		panic(err)
	}
	return hashWithDomain(DomainNode, data)
}

func ruleSetHash(rules []*Rule) string {
	arr := make(List, 0, len(rules))
	for _, r := range rules {
		alts := make(List, len(r.Before))
		for i, b := range r.Before {
			alts[i] = Encode(b)
		}
		vars := make(List, len(r.Vars))
		for i, v := range r.Vars {
			vars[i] = Object{
				"name":  String(v.Name),
				"bound": String(v.Bound.Kind.String() + " " + encodeTypeString(v.Bound.Type)),
				"mult":  Int(v.Multiplicity),
			}
		}
		arr = append(arr, Object{
			"id":      String(r.ID),
			"before":  alts,
			"after":   Encode(r.After),
			"policy":  String(r.ImportPolicy.String()),
			"vars":    vars,
			"returns": String(encodeTypeString(r.Returns)),
		})
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainRuleSet, data)
}

func encodeTypeString(t Type) string {
	if t == nil {
		return ""
	}
	return QualifiedTypeString(t)
}
