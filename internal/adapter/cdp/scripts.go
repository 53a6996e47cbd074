package cdp

// 脚本内发现元素已脱离文档时抛出的标记
const detachedMarker = "formease:detached"

const guard = `if (!this.isConnected) throw new Error("` + detachedMarker + `");`

const snapshotScript = `function() {
	const el = this;
	const attrs = {};
	for (const a of el.attributes) attrs[a.name.toLowerCase()] = a.value;
	const cs = el.isConnected ? getComputedStyle(el) : null;
	const r = el.getBoundingClientRect();
	const aria = (n) => el.getAttribute(n) === "true";
	return {
		tag: el.tagName,
		attrs: attrs,
		value: "value" in el && el.value != null ? String(el.value) : "",
		disabled: !!el.disabled || aria("aria-disabled"),
		readOnly: !!el.readOnly || aria("aria-readonly"),
		required: !!el.required || aria("aria-required"),
		checked: !!el.checked || aria("aria-checked"),
		contentEditable: !!el.isContentEditable,
		connected: el.isConnected,
		inLayout: el.getClientRects().length > 0,
		display: cs ? cs.display : "none",
		visibility: cs ? cs.visibility : "hidden",
		opacity: cs ? parseFloat(cs.opacity) : 0,
		width: r.width,
		height: r.height
	};
}`

const textScript = `function() { ` + guard + ` return this.innerText || this.textContent || ""; }`

const parentScript = `function() { return this.parentElement; }`

const closestScript = `function(sel) { return this.closest(sel); }`

const queryScript = `function(sel) { return Array.from(this.querySelectorAll(sel)); }`

const focusScript = `function() { ` + guard + ` this.focus(); }`

const clickScript = `function() { ` + guard + ` this.scrollIntoView({block: "center"}); this.click(); }`

// setValueScript 通过原型上的 setter 赋值，使受控组件感知变更
const setValueScript = `function(v) {
	` + guard + `
	if (!("value" in this) && this.isContentEditable) { this.textContent = v; return; }
	let proto = HTMLInputElement.prototype;
	if (this instanceof HTMLTextAreaElement) proto = HTMLTextAreaElement.prototype;
	else if (this instanceof HTMLSelectElement) proto = HTMLSelectElement.prototype;
	const d = Object.getOwnPropertyDescriptor(proto, "value");
	if (d && d.set) d.set.call(this, v); else this.value = v;
}`

const setTextScript = `function(v) { ` + guard + ` this.textContent = v; }`

const dispatchScript = `function(t) { ` + guard + ` this.dispatchEvent(new Event(t, {bubbles: true})); }`

const addClassScript = `function(c) { ` + guard + ` this.classList.add(c); }`

const removeClassScript = `function(c) { ` + guard + ` this.classList.remove(c); }`

const optionsScript = `function() {
	return Array.from(this.options || []).map(o => ({value: o.value, text: o.text, selected: o.selected}));
}`

const selectScript = `function(i) { ` + guard + ` this.selectedIndex = i; }`

const byIDScript = `function(id) { return this.getElementById(id); }`
