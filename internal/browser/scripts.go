package browser

// IndexAttr is stamped on every form control so a control in the parsed
// tree can be found again in the live page
const IndexAttr = "data-jobfill-idx"

// bindingName is the page function that reports submit and unload
const bindingName = "__jobfillEvent"

// highlightCSS styles the confidence classes the filler sets
const highlightCSS = `
.autofill-high { outline: 2px solid #2e7d32 !important; background-color: #e8f5e9 !important; }
.autofill-medium { outline: 2px solid #f9a825 !important; background-color: #fffde7 !important; }
.autofill-low { outline: 2px solid #c62828 !important; background-color: #ffebee !important; }
`

// collectScript reads the current value and checked state of every stamped
// control as {idx: {value, checked}}
const collectScript = `() => {
  const states = {};
  document.querySelectorAll('[` + IndexAttr + `]').forEach((el) => {
    states[el.getAttribute('` + IndexAttr + `')] = { value: el.value, checked: !!el.checked };
  });
  return states;
}`

// stampScript numbers the controls, records their layout visibility and
// (once per document) installs the submit and unload listeners. It returns
// the number of controls stamped.
const stampScript = `() => {
  const controls = document.querySelectorAll('input, select, textarea');
  controls.forEach((el, i) => {
    el.setAttribute('` + IndexAttr + `', String(i));
    const style = window.getComputedStyle(el);
    const hidden = style.display === 'none' || style.visibility === 'hidden' ||
      (el.offsetParent === null && style.position !== 'fixed');
    el.setAttribute('data-jobfill-visible', hidden ? 'false' : 'true');
  });

  if (!window.__jobfillListening) {
    window.__jobfillListening = true;
    const collect = ` + collectScript + `;
    document.addEventListener('submit', () => {
      window.` + bindingName + `('submit', collect());
    }, true);
    window.addEventListener('beforeunload', () => {
      window.` + bindingName + `('beforeunload', collect());
    });
  }
  return controls.length;
}`

// setValueScript uses the prototype setter so framework-controlled inputs
// see the change
const setValueScript = `(el, value) => {
  if (el.tagName === 'SELECT') {
    el.value = value;
    return;
  }
  const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
  setter.call(el, value);
}`

const setCheckedScript = `(el, checked) => { el.checked = checked; }`

const setClassScript = `(el, cls) => { el.className = cls; }`

const setDataScript = `(el, kv) => { el.setAttribute('data-' + kv[0], kv[1]); }`
