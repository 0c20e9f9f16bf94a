package assets

import "strings"

// serviceWorkerTemplate implements the interception policy of spec §4.8.
// VEILPROXY_VERSION is baked in so activate() can evict stale caches from a
// previous deploy.
const serviceWorkerTemplate = `
var VEILPROXY_VERSION = __VERSION__;
var CACHE_NAME = "veilproxy-" + VEILPROXY_VERSION;
var lastKnownGoodTarget = null;

self.addEventListener("install", function (event) {
  self.skipWaiting();
});

self.addEventListener("activate", function (event) {
  event.waitUntil(
    caches.keys().then(function (keys) {
      return Promise.all(keys.filter(function (k) { return k !== CACHE_NAME; }).map(function (k) {
        return caches.delete(k);
      }));
    }).then(function () { return self.clients.claim(); })
  );
});

function looksLikeToken(token) {
  return /^[A-Za-z0-9_-]+$/.test(token || "");
}

function decodeToken(token) {
  var normalized = token.replace(/-/g, "+").replace(/_/g, "/");
  while (normalized.length % 4 !== 0) normalized += "=";
  return atob(normalized);
}

function repairToken(token) {
  if (!lastKnownGoodTarget) return null;
  try {
    return new URL(token, lastKnownGoodTarget).href;
  } catch (e) {
    return null;
  }
}

function isStaticPath(pathname) {
  return pathname === "/" || pathname === "/index.html" || pathname === "/sw.js" ||
    pathname.indexOf("/assets/") === 0 || pathname.indexOf("/api/") === 0;
}

function proxyInline(request) {
  var url = new URL(request.url);
  var apiUrl = "/api/proxy" + url.search;
  var headers = new Headers(request.headers);
  if (request.headers.get("User-Agent")) {
    headers.set("X-Original-UA", request.headers.get("User-Agent"));
  }
  return fetch(apiUrl, {
    method: request.method,
    headers: headers,
    body: request.method === "GET" || request.method === "HEAD" ? undefined : request.body,
    credentials: "include"
  }).catch(function (err) {
    return new Response(JSON.stringify({ error: "bad_gateway", message: String(err) }), {
      status: 502, headers: { "Content-Type": "application/json" }
    });
  });
}

function encodeToProxyPath(targetUrl) {
  var b64 = btoa(targetUrl).replace(/\+/g, "-").replace(/\//g, "_").replace(/=+$/, "");
  return "/p/" + b64;
}

function isGoogleAdsClick(href) {
  if (!href) return false;
  return /googleadservices\.com\/.*aclk/i.test(href) ||
    /doubleclick\.net\/.*clk/i.test(href) ||
    /googlesyndication\.com\/.*aclk/i.test(href);
}

self.addEventListener("fetch", function (event) {
  var request = event.request;
  var url = new URL(request.url);

  if (url.pathname.indexOf("/p/") === 0 || url.pathname.indexOf("/external/") === 0) {
    var token = url.pathname.replace(/^\/(p|external)\//, "");
    if (!looksLikeToken(token)) {
      var repaired = repairToken(token);
      if (!repaired) {
        event.respondWith(new Response(JSON.stringify({ error: "bad_request", message: "malformed token" }), {
          status: 400, headers: { "Content-Type": "application/json" }
        }));
        return;
      }
      token = encodeToProxyPath(repaired).slice(3);
    }
    try {
      lastKnownGoodTarget = decodeToken(token);
    } catch (e) {}
    event.respondWith(proxyInline(request));
    return;
  }

  if (isStaticPath(url.pathname)) {
    return; // pass through unchanged
  }

  if (url.origin !== self.location.origin) {
    var destination = request.destination;
    var isNavigate = request.mode === "navigate";
    var fromProxiedPage = request.referrer && request.referrer.indexOf(self.location.origin) === 0;

    if (destination === "iframe" || (isNavigate && destination === "document" && fromProxiedPage) ||
      (destination === "" && request.mode === "cors")) {
      event.respondWith(proxyInline(request));
      return;
    }
    if (isNavigate && isGoogleAdsClick(request.url)) {
      event.respondWith(proxyInline(request));
      return;
    }
    if (isNavigate) {
      event.respondWith(Response.redirect(encodeToProxyPath(request.url), 302));
      return;
    }
    event.respondWith(proxyInline(request));
    return;
  }

  // same-origin, not a known prefix: pass through
});
`

// ServiceWorkerSource returns the service worker script with its cache
// version stamped in.
func ServiceWorkerSource(version string) string {
	return strings.Replace(serviceWorkerTemplate, "__VERSION__", jsStringLiteral(version), 1)
}
