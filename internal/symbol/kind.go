// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package symbol holds the in-memory Symbol tree, its name-path
// resolver, and the pure traversal/matching functions built on top of
// it. Everything here is language-agnostic: it operates purely on the
// hierarchical shape produced from a Language Server's documentSymbol
// response.
package symbol

// Kind mirrors the closed LSP SymbolKind enumeration.
type Kind int

const (
	KindFile Kind = iota + 1
	KindModule
	KindNamespace
	KindPackage
	KindClass
	KindMethod
	KindProperty
	KindField
	KindConstructor
	KindEnum
	KindInterface
	KindFunction
	KindVariable
	KindConstant
	KindString
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindKey
	KindNull
	KindEnumMember
	KindStruct
	KindEvent
	KindOperator
	KindTypeParameter
)

var kindNames = map[Kind]string{
	KindFile: "File", KindModule: "Module", KindNamespace: "Namespace", KindPackage: "Package",
	KindClass: "Class", KindMethod: "Method", KindProperty: "Property", KindField: "Field",
	KindConstructor: "Constructor", KindEnum: "Enum", KindInterface: "Interface", KindFunction: "Function",
	KindVariable: "Variable", KindConstant: "Constant", KindString: "String", KindNumber: "Number",
	KindBoolean: "Boolean", KindArray: "Array", KindObject: "Object", KindKey: "Key", KindNull: "Null",
	KindEnumMember: "EnumMember", KindStruct: "Struct", KindEvent: "Event", KindOperator: "Operator",
	KindTypeParameter: "TypeParameter",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKind resolves a Kind by its String() name, case-sensitive, for
// callers that accept kind filters as human-readable strings (e.g. the
// findSymbol tool's kinds parameter).
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNull, false
}

// FromLSP maps an LSP SymbolKind integer (1-indexed, same ordering as
// this package's Kind) onto Kind. LSP's enumeration and this one share
// the same numbering, so the conversion is an identity cast guarded by
// range validation.
func FromLSP(value int) Kind {
	if value < int(KindFile) || value > int(KindTypeParameter) {
		return KindNull
	}
	return Kind(value)
}
