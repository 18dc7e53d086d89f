package runner

import (
	"encoding/base64"
	"fmt"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// karateStep renders o as DSL steps for the audit trail. Credentials are
// masked.
func (e *Engine) karateStep(o outbound, expected int) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "* url '%s'\n", o.URL)
	switch {
	case o.Auth.Username != "" && o.Auth.Password != "":
		fmt.Fprintf(b, "* def username = '%s'\n", o.Auth.Username)
		fmt.Fprintf(b, "* def password = '%s'\n", e.redactor().Secret(o.Auth.Password))
		b.WriteString("* header Authorization = call read('classpath:basic-auth.js') { username: '#(username)', password: '#(password)' }\n")
	case o.Auth.Token != "":
		fmt.Fprintf(b, "* header Authorization = '%s'\n", e.redactor().Header("Authorization", authorizationValue(o.Auth.Token)))
	}
	if o.Accept != "" {
		fmt.Fprintf(b, "* header Accept = '%s'\n", o.Accept)
	}
	for _, k := range sortedKeys(o.Headers) {
		fmt.Fprintf(b, "* header %s = '%s'\n", k, e.redactor().Header(k, o.Headers[k]))
	}
	if hasBody(strings.ToUpper(o.Method)) && o.Body != nil {
		if payload, err := encodeBody(o.Body); err == nil {
			fmt.Fprintf(b, "* request %s\n", e.redactor().Body(string(payload)))
		}
	}
	fmt.Fprintf(b, "* method %s\n", strings.ToLower(o.Method))
	fmt.Fprintf(b, "* status %d", expected)
	return b.String()
}

// curl renders o as a shell-quoted curl command with credentials masked.
func (e *Engine) curl(o outbound) string {
	args := []string{"curl", "-X", strings.ToUpper(o.Method), o.URL, "-H", "Content-Type: application/json"}
	if o.Accept != "" {
		args = append(args, "-H", "Accept: "+o.Accept)
	}
	for _, k := range sortedKeys(o.Headers) {
		args = append(args, "-H", k+": "+e.redactor().Header(k, o.Headers[k]))
	}
	switch {
	case o.Auth.Username != "" && o.Auth.Password != "":
		token := base64.StdEncoding.EncodeToString([]byte(o.Auth.Username + ":" + o.Auth.Password))
		args = append(args, "-H", "Authorization: "+e.redactor().Header("Authorization", "Basic "+token))
	case o.Auth.Token != "":
		args = append(args, "-H", "Authorization: "+e.redactor().Header("Authorization", authorizationValue(o.Auth.Token)))
	}
	if hasBody(strings.ToUpper(o.Method)) && o.Body != nil {
		if payload, err := encodeBody(o.Body); err == nil {
			args = append(args, "-d", e.redactor().Body(string(payload)))
		}
	}
	return shellquote.Join(args...)
}
