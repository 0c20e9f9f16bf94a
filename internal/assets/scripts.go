// Package assets holds the runtime interception layer (C8): the service
// worker source and the in-page runtime scripts injected into rewritten
// HTML. Served as Go string constants following widget-server's pattern of
// shipping JS as a backtick literal rather than reading it off disk.
package assets

import "strings"

// InjectionSentinel marks a page that has already received the runtime
// scripts. html.go checks for it up front so a second rewrite pass never
// injects twice (spec §8 invariant 3).
const InjectionSentinel = "data-veilproxy-injected"

const webrtcNeutralization = `
(function () {
  "use strict";
  function neuter(name) {
    if (!(name in window)) return;
    function Blocked() { throw new Error(name + " is disabled"); }
    Blocked.prototype = window[name] ? window[name].prototype : {};
    try { window[name] = Blocked; } catch (e) {}
  }
  ["RTCPeerConnection", "webkitRTCPeerConnection", "mozRTCPeerConnection",
   "RTCSessionDescription", "RTCIceCandidate"].forEach(neuter);

  if (navigator.mediaDevices) {
    var deny = function () { return Promise.reject(new DOMException("disabled", "NotAllowedError")); };
    try { navigator.mediaDevices.getUserMedia = deny; } catch (e) {}
    try { navigator.mediaDevices.getDisplayMedia = deny; } catch (e) {}
    try { navigator.mediaDevices.enumerateDevices = function () { return Promise.resolve([]); }; } catch (e) {}
  }

  var NativeWebSocket = window.WebSocket;
  if (NativeWebSocket) {
    window.WebSocket = function (url, protocols) {
      try { console.debug("[veilproxy] websocket ->", url); } catch (e) {}
      return protocols === undefined ? new NativeWebSocket(url) : new NativeWebSocket(url, protocols);
    };
    window.WebSocket.prototype = NativeWebSocket.prototype;
  }
})();
`

// runtimeScriptTemplate is the in-page interception script (spec §4.8). The
// placeholders are substituted with JSON-quoted string literals before
// injection so the target URL and proxy origin are baked in at inject-time.
const runtimeScriptTemplate = `
(function () {
  "use strict";
  var TARGET_URL = __TARGET_URL__;
  var PROXY_ORIGIN = __PROXY_ORIGIN__;
  var target = new URL(TARGET_URL);

  function isProxied(u) {
    return typeof u === "string" && (u.indexOf("/p/") === 0 || u.indexOf("/external/") === 0);
  }
  function isSkippable(u) {
    if (typeof u !== "string" || u === "") return true;
    if (u.charAt(0) === "#") return true;
    return /^(data|blob|javascript|mailto|tel|about):/i.test(u);
  }
  function shouldProxy(u) {
    if (isSkippable(u) || isProxied(u)) return false;
    try {
      var resolved = new URL(u, TARGET_URL);
      return resolved.origin !== window.location.origin;
    } catch (e) {
      return false;
    }
  }
  function toProxy(u) {
    try {
      var resolved = new URL(u, TARGET_URL);
      return "/p/" + btoa(resolved.href).replace(/\+/g, "-").replace(/\//g, "_").replace(/=+$/, "");
    } catch (e) {
      return u;
    }
  }

  try {
    Object.defineProperty(document, "URL", { get: function () { return TARGET_URL; } });
    Object.defineProperty(document, "documentURI", { get: function () { return TARGET_URL; } });
    Object.defineProperty(document, "baseURI", { get: function () { return TARGET_URL; } });
    Object.defineProperty(document, "domain", { get: function () { return target.hostname; } });
    Object.defineProperty(document, "referrer", { get: function () { return TARGET_URL; } });
  } catch (e) {}

  var locationShim = {
    href: TARGET_URL,
    origin: target.origin,
    protocol: target.protocol,
    host: target.host,
    hostname: target.hostname,
    port: target.port,
    pathname: target.pathname,
    search: target.search,
    hash: target.hash,
    assign: function (u) { window.location.assign(shouldProxy(u) ? toProxy(u) : u); },
    replace: function (u) { window.location.replace(shouldProxy(u) ? toProxy(u) : u); },
    reload: function () { window.location.reload(); },
    toString: function () { return TARGET_URL; }
  };
  try {
    Object.defineProperty(window, "__veilproxyLocation", { value: locationShim, configurable: true });
  } catch (e) {}

  var nativeFetch = window.fetch;
  if (nativeFetch) {
    window.fetch = function (input, init) {
      if (typeof input === "string" && shouldProxy(input)) {
        input = toProxy(input);
      } else if (input && input.url && shouldProxy(input.url)) {
        input = new Request(toProxy(input.url), input);
      }
      return nativeFetch.call(this, input, init);
    };
  }

  var nativeOpen = XMLHttpRequest.prototype.open;
  XMLHttpRequest.prototype.open = function (method, url) {
    var args = Array.prototype.slice.call(arguments);
    if (shouldProxy(url)) args[1] = toProxy(url);
    return nativeOpen.apply(this, args);
  };

  function interceptProperty(ctor, prop) {
    if (!ctor || !ctor.prototype) return;
    var desc = Object.getOwnPropertyDescriptor(ctor.prototype, prop) ||
      Object.getOwnPropertyDescriptor(Element.prototype, prop);
    if (!desc || !desc.set) return;
    Object.defineProperty(ctor.prototype, prop, {
      get: desc.get,
      set: function (value) {
        if (shouldProxy(value)) value = toProxy(value);
        desc.set.call(this, value);
      },
      configurable: true
    });
  }
  interceptProperty(window.HTMLImageElement, "src");
  interceptProperty(window.HTMLScriptElement, "src");
  interceptProperty(window.HTMLIFrameElement, "src");
  interceptProperty(window.HTMLLinkElement, "href");

  var nativeSetAttribute = Element.prototype.setAttribute;
  Element.prototype.setAttribute = function (name, value) {
    var urlAttrs = { src: 1, href: 1, action: 1, data: 1 };
    if (urlAttrs[String(name).toLowerCase()] && shouldProxy(value)) {
      value = toProxy(value);
    }
    return nativeSetAttribute.call(this, name, value);
  };

  var nativeCreateElement = document.createElement.bind(document);
  document.createElement = function (tagName) {
    var el = nativeCreateElement(tagName);
    if (String(tagName).toLowerCase() === "iframe") {
      var desc = Object.getOwnPropertyDescriptor(HTMLIFrameElement.prototype, "src");
      if (desc && desc.set) {
        Object.defineProperty(el, "src", {
          get: desc.get ? desc.get.bind(el) : undefined,
          set: function (value) {
            if (shouldProxy(value)) value = toProxy(value);
            desc.set.call(el, value);
          },
          configurable: true
        });
      }
    }
    return el;
  };

  var nativeOpenWindow = window.open;
  window.open = function (url, name, specs) {
    if (shouldProxy(url)) url = toProxy(url);
    return nativeOpenWindow.call(this, url, name, specs);
  };

  if (navigator.sendBeacon) {
    var nativeSendBeacon = navigator.sendBeacon.bind(navigator);
    navigator.sendBeacon = function (url, data) {
      if (shouldProxy(url)) url = toProxy(url);
      return nativeSendBeacon(url, data);
    };
  }
  if (window.fetchLater) {
    var nativeFetchLater = window.fetchLater.bind(window);
    window.fetchLater = function (input, init) {
      if (typeof input === "string" && shouldProxy(input)) input = toProxy(input);
      return nativeFetchLater(input, init);
    };
  }

  function rewriteFragment(html) {
    return html.replace(/(<(?:iframe|script)\b[^>]*\b(?:src)=)(["'])(.*?)\2/gi, function (m, prefix, quote, url) {
      return shouldProxy(url) ? prefix + quote + toProxy(url) + quote : m;
    });
  }
  var nativeWrite = document.write.bind(document);
  document.write = function (html) { return nativeWrite(rewriteFragment(String(html))); };
  var nativeWriteln = document.writeln.bind(document);
  document.writeln = function (html) { return nativeWriteln(rewriteFragment(String(html))); };

  var nativePushState = history.pushState.bind(history);
  history.pushState = function (state, title, url) {
    if (url && shouldProxy(url)) url = toProxy(url);
    return nativePushState(state, title, url);
  };
  var nativeReplaceState = history.replaceState.bind(history);
  history.replaceState = function (state, title, url) {
    if (url && shouldProxy(url)) url = toProxy(url);
    return nativeReplaceState(state, title, url);
  };

  function applyToNode(node) {
    if (!node || node.nodeType !== 1) return;
    if (node.tagName === "IFRAME" || node.tagName === "A") {
      var attr = node.tagName === "IFRAME" ? "src" : "href";
      var v = node.getAttribute(attr);
      if (shouldProxy(v)) node.setAttribute(attr, toProxy(v));
    }
    var children = node.querySelectorAll ? node.querySelectorAll("iframe[src], a[href]") : [];
    for (var i = 0; i < children.length; i++) {
      var child = children[i];
      var childAttr = child.tagName === "IFRAME" ? "src" : "href";
      var childValue = child.getAttribute(childAttr);
      if (shouldProxy(childValue)) child.setAttribute(childAttr, toProxy(childValue));
    }
  }
  var observer = new MutationObserver(function (mutations) {
    mutations.forEach(function (mutation) {
      mutation.addedNodes.forEach(applyToNode);
    });
  });
  if (document.body) {
    observer.observe(document.body, { childList: true, subtree: true });
  } else {
    document.addEventListener("DOMContentLoaded", function () {
      observer.observe(document.body, { childList: true, subtree: true });
    });
  }

  function navigate(url, newTab) {
    var proxied = toProxy(url);
    if (newTab) window.open(proxied, "_blank");
    else window.location.href = proxied;
  }

  function clickHandler(event) {
    var anchor = event.target.closest ? event.target.closest("a[href]") : null;
    if (!anchor) return;
    var href = anchor.getAttribute("href");
    if (href && href.charAt(0) === "/" && href.indexOf("/p/") === 0) {
      var token = href.slice(3).split(/[?#]/)[0];
      if (!/^[A-Za-z0-9_-]+$/.test(token)) {
        try {
          var repaired = new URL(token, TARGET_URL).href;
          event.preventDefault();
          navigate(repaired, anchor.target === "_blank");
        } catch (e) {}
        return;
      }
    }
    if (!shouldProxy(href)) return;
    event.preventDefault();
    navigate(href, anchor.target === "_blank");
  }
  document.addEventListener("click", clickHandler, true);
  document.addEventListener("mousedown", clickHandler, true);
  document.addEventListener("touchend", clickHandler, true);
})();
`

const adFrameScriptTemplate = `
(function () {
  "use strict";
  var TARGET_URL = __TARGET_URL__;

  function isGoogleAdsClick(href) {
    if (!href) return false;
    return /googleadservices\.com\/.*aclk/i.test(href) ||
      /doubleclick\.net\/.*clk/i.test(href) ||
      /googlesyndication\.com\/.*aclk/i.test(href);
  }

  function extractAdurl(href) {
    try {
      var u = new URL(href, TARGET_URL);
      return u.searchParams.get("adurl") || undefined;
    } catch (e) {
      return undefined;
    }
  }

  function fireClickBeacon(href) {
    var payload = {
      clickUrl: href,
      cookies: document.cookie,
      userAgent: navigator.userAgent,
      referrer: TARGET_URL,
      language: navigator.language,
      adurl: extractAdurl(href)
    };
    return fetch("/api/click-beacon", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(payload),
      credentials: "include"
    }).then(function (res) { return res.json(); });
  }

  function topNavigate(url) {
    try {
      (window.top || window).location.href = url;
    } catch (e) {
      window.location.href = url;
    }
  }

  document.addEventListener("click", function (event) {
    var anchor = event.target.closest ? event.target.closest("a[href]") : null;
    if (!anchor) return;
    var href = anchor.getAttribute("href");
    if (!isGoogleAdsClick(href)) return;
    event.preventDefault();
    fireClickBeacon(href).then(function (result) {
      if (result && result.proxyUrl) topNavigate(result.proxyUrl);
    }).catch(function () {});
  }, true);

  document.addEventListener("submit", function (event) {
    var form = event.target;
    if (!form || !form.action) return;
    try {
      var action = new URL(form.action, TARGET_URL);
      if (action.origin !== window.location.origin) {
        event.preventDefault();
        topNavigate(form.action);
      }
    } catch (e) {}
  }, true);

  try {
    ["top", "parent"].forEach(function (ref) {
      var frame = window[ref];
      if (!frame || frame === window) return;
      try {
        Object.defineProperty(frame, "location", {
          set: function (url) { topNavigate(url); },
          configurable: true
        });
      } catch (e) {}
    });
  } catch (e) {}
})();
`

func jsStringLiteral(s string) string {
	escaped := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "",
		"<", "\\x3c",
	).Replace(s)
	return "\"" + escaped + "\""
}

// WebRTCScript returns the WebRTC-neutralization snippet, which must be
// injected before the runtime interception script.
func WebRTCScript() string { return webrtcNeutralization }

// RuntimeScript returns the in-page interception script with the true
// target URL and proxy origin baked in as string literals.
func RuntimeScript(targetURL, proxyOrigin string) string {
	r := strings.NewReplacer(
		"__TARGET_URL__", jsStringLiteral(targetURL),
		"__PROXY_ORIGIN__", jsStringLiteral(proxyOrigin),
	)
	return r.Replace(runtimeScriptTemplate)
}

// AdFrameScript returns the narrower ad-frame interception script (spec
// §4.11) for the adFrame rewrite mode.
func AdFrameScript(targetURL string) string {
	r := strings.NewReplacer("__TARGET_URL__", jsStringLiteral(targetURL))
	return r.Replace(adFrameScriptTemplate)
}
