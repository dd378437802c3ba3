package server

import (
	"html/template"
	"net/http"
)

// AuthMessageType is the postMessage type the opener window listens for.
const AuthMessageType = "drivecast-auth"

var callbackTmpl = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>drivecast authorization</title></head>
<body>
<p>{{.Message}}</p>
<script>
(function () {
  var msg = {type: {{.Type}}, success: {{.Success}}, message: {{.Message}}};
  if (window.opener) {
    window.opener.postMessage(msg, window.location.origin);
    window.close();
  }
})();
</script>
</body>
</html>
`))

type callbackPage struct {
	Type    string
	Success bool
	Message string
}

// renderCallback writes the popup page that reports the outcome to the
// window that opened it and then closes itself.
func renderCallback(w http.ResponseWriter, status int, success bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	_ = callbackTmpl.Execute(w, callbackPage{
		Type:    AuthMessageType,
		Success: success,
		Message: message,
	})
}
