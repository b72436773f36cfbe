package logging

import (
	"reflect"
)

// Type returns the dynamic type name of an object, for log fields.
func Type(obj interface{}) string {
	return reflect.TypeOf(obj).String()
}
