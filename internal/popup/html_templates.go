package popup

import (
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// callbackPage is rendered on the redirect target. The page closes itself once a
// code or error is present; the coordinator has already observed the callback.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Google Ads</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f9fafb;
        }
        .container {
            text-align: center;
            background: white;
            padding: 1.5rem;
            border-radius: 8px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 360px;
            width: 100%;
        }
        h2 { font-size: 1.125rem; margin-bottom: 0.5rem; }
        .ok { color: #16a34a; }
        .fail { color: #dc2626; }
        p { color: #4b5563; font-size: 0.875rem; }
        small { color: #6b7280; }
    </style>
</head>
<body>
    <div class="container">
        {{if .Failed}}
        <h2 class="fail">Authentication Failed</h2>
        <p>Error: {{.Error}}</p>
        {{else if .Success}}
        <h2 class="ok">Success!</h2>
        <p>Authentication completed successfully.</p>
        {{else}}
        <h2>Processing Authentication</h2>
        <p>Please wait...</p>
        {{end}}
        {{if .Done}}<small>This window will close automatically...</small>{{end}}
    </div>
    {{if .Done}}<script>setTimeout(function () { window.close(); }, 1500);</script>{{end}}
</body>
</html>`))

type callbackView struct {
	Title   string
	Success bool
	Failed  bool
	Done    bool
	Error   string
}

func renderCallbackPage(w http.ResponseWriter, success bool, errorParam string) {
	view := callbackView{Title: "Processing Authentication"}
	switch {
	case errorParam != "":
		view = callbackView{Title: "Authentication Failed", Failed: true, Done: true, Error: errorParam}
	case success:
		view = callbackView{Title: "Authentication Successful", Success: true, Done: true}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := callbackPage.Execute(w, view); err != nil {
		log.Errorf("Failed to write callback page: %v", err)
	}
}
