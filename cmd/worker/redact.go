package main

import "regexp"

// user:pass@ -> user:****@, DSN без пароля не трогаем
var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

func redactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
