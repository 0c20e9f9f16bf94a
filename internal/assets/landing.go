package assets

import (
	"html"
	"strings"
)

// landingTemplate is the static landing page (spec §6: GET / -> "Landing
// HTML with TARGET_SITE placeholder substituted"). Styled after
// preview-proxy's notFoundHTML: a single centered card, no framework.
const landingTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>veilproxy</title>
<link rel="stylesheet" href="/assets/style.css">
</head>
<body>
<div class="card">
  <h1>veilproxy</h1>
  <p>Browsing through this proxy as <span class="target">__TARGET_SITE__</span>.
  Your IP is never exposed to the target; every resource is fetched
  server-side through a residential upstream.</p>
  <button id="go">Start browsing</button>
</div>
<script>
if ("serviceWorker" in navigator) {
  navigator.serviceWorker.register("/sw.js", { scope: "/" }).catch(function (e) {
    console.error("sw registration failed", e);
  });
}
document.getElementById("go").addEventListener("click", function () {
  fetch("/api/session", { method: "POST", credentials: "include" }).finally(function () {
    window.location.href = __TARGET_PROXY_PATH__;
  });
});
</script>
</body>
</html>`

// LandingPage renders the landing page with targetSite substituted, and a
// pre-computed proxy path for the "Start browsing" button.
func LandingPage(targetSite, targetProxyPath string) string {
	r := strings.NewReplacer(
		"__TARGET_SITE__", html.EscapeString(targetSite),
		"__TARGET_PROXY_PATH__", jsStringLiteral(targetProxyPath),
	)
	return r.Replace(landingTemplate)
}
