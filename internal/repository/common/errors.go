package common

import "errors"

// ErrAlreadyExists возвращается при нарушении уникальности, прежде всего
// уникальности email в таблице пользователей.
var ErrAlreadyExists = errors.New("entity already exists")
