package server

import (
	"io"
	"net/http"
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ipkv - endpoint list API</title>
</head>
<body>
<h1>ipkv - endpoint list API</h1>
<p>Stores one newline-delimited list of endpoints per key (default <code>ADD.txt</code>).</p>
<p>Authenticate with <code>X-API-Key</code>, <code>Authorization: Bearer &lt;key&gt;</code> or <code>?api_key=</code>.</p>
<ul>
<li><code>GET /api/health</code> - store probe, no key required</li>
<li><code>GET /api/ips?key=ADD.txt&amp;format=json|text</code> - read a list</li>
<li><code>POST /api/ips</code> - <code>{"ips": [...], "action": "replace|append", "key": "ADD.txt"}</code>, or a plain-text body that replaces <code>ADD.txt</code></li>
<li><code>GET /api/stats</code> - summary of <code>ADD.txt</code></li>
</ul>
</body>
</html>
`

func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, indexHTML)
}
