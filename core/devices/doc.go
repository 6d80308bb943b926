// Package devices is the client for the smart-lock cloud API.
//
// Responses are decoded into wire structs, validated with go-playground/validator
// and converted to the typed Lock, Slot and ChangeResponse values before they
// reach the engine. List entries that fail validation are dropped with a warning.
// ChangeResponse keeps both the HTTP status and the nested errcode since the vendor
// reports semantic failures inside successful HTTP responses.
package devices
