package consterr

import "strings"

//ConstErr is used to be able to declare constants that are errors that are strings
type ConstErr string

//Error returns the value of the underlying string
func (errstr ConstErr) Error() string { return string(errstr) }

//Code returns a short machine friendly form of the error (ex. "access_denied")
// suitable for JSON reports and log fields
func (errstr ConstErr) Code() string {
	return strings.ReplaceAll(strings.ToLower(string(errstr)), " ", "_")
}

var _ error = ConstErr("") //compile time type check
