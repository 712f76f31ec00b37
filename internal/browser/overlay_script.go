package browser

const overlayGlobal = "__sweerOverlay"

// overlayInstallScript defines window.__sweerOverlay with draw() and remove().
// Installing twice on the same document is a no-op.
func overlayInstallScript() string {
	return `(prefix) => {
		if (window.` + overlayGlobal + `) {
			return;
		}

		const includeTags = ['INPUT', 'TEXTAREA', 'SELECT', 'BUTTON', 'A', 'IFRAME', 'VIDEO'];
		const minimumArea = 20;
		let markers = [];
		let counter = Date.now();

		const assignId = (el) => {
			if (el.id) {
				return el.id;
			}

			let candidate = prefix + counter++;
			while (document.getElementById(candidate)) {
				candidate = prefix + counter++;
			}

			el.id = candidate;
			return candidate;
		};

		const isInteractive = (el) => {
			return includeTags.includes(el.tagName) ||
				el.onclick != null ||
				window.getComputedStyle(el).cursor === 'pointer';
		};

		const visibleRects = (el, vw, vh) => {
			return Array.from(el.getClientRects())
				.filter((bb) => {
					const hit = document.elementFromPoint(bb.left + bb.width / 2, bb.top + bb.height / 2);
					return hit === el || el.contains(hit);
				})
				.map((bb) => {
					const left = Math.max(0, bb.left);
					const top = Math.max(0, bb.top);
					const right = Math.min(vw, bb.right);
					const bottom = Math.min(vh, bb.bottom);
					return { left, top, width: right - left, height: bottom - top };
				});
		};

		const drawMarker = (rect, text) => {
			const color = '#' + Math.floor(Math.random() * 0xffffff).toString(16).padStart(6, '0');

			const box = document.createElement('div');
			box.setAttribute('data-sweer-overlay', '');
			box.style.cssText =
				'outline: 2px dotted ' + color + ';' +
				'position: fixed;' +
				'left: ' + rect.left + 'px;' +
				'top: ' + rect.top + 'px;' +
				'width: ' + rect.width + 'px;' +
				'height: ' + rect.height + 'px;' +
				'pointer-events: none;' +
				'box-sizing: border-box;' +
				'z-index: 2147483647;';

			let labelTop = -20;
			let labelLeft = 0;
			if (rect.top < 20) {
				labelTop = 0;
				if (rect.left > 20) {
					labelLeft = -20;
				}
			}

			const label = document.createElement('span');
			label.textContent = text;
			label.style.cssText =
				'position: absolute;' +
				'top: ' + labelTop + 'px;' +
				'left: ' + labelLeft + 'px;' +
				'background: ' + color + ';' +
				'color: white;' +
				'padding: 2px 4px;' +
				'font-size: 12px;' +
				'border-radius: 2px;';

			box.appendChild(label);
			document.body.appendChild(box);
			markers.push(box);
		};

		const remove = () => {
			for (const marker of markers) {
				marker.remove();
			}
			markers = [];
		};

		const draw = () => {
			remove();

			const vw = Math.max(document.documentElement.clientWidth || 0, window.innerWidth || 0);
			const vh = Math.max(document.documentElement.clientHeight || 0, window.innerHeight || 0);

			let items = Array.from(document.querySelectorAll('*'))
				.filter((el) => !el.hasAttribute('data-sweer-overlay'))
				.map((el) => {
					const rects = visibleRects(el, vw, vh);
					const area = rects.reduce((acc, r) => acc + r.width * r.height, 0);
					return { el, rects, area, include: isInteractive(el) };
				})
				.filter((item) => item.include && item.area >= minimumArea);

			items = items.filter((x) => !items.some((y) => x !== y && x.el.contains(y.el)));

			return items.map((item, index) => {
				const text = String(index + 1);
				item.rects.forEach((rect) => drawMarker(rect, text));

				return {
					label: text,
					id: assignId(item.el),
					type: item.el.tagName.toLowerCase(),
					class: item.el.getAttribute('class') || '',
					text: item.el.textContent.trim().replace(/\s{2,}/g, ' '),
					ariaLabel: item.el.getAttribute('aria-label') || '',
				};
			});
		};

		window.` + overlayGlobal + ` = { draw, remove };
	}`
}

func overlayDrawScript() string {
	return `() => window.` + overlayGlobal + `.draw()`
}

func overlayRemoveScript() string {
	return `() => { if (window.` + overlayGlobal + `) { window.` + overlayGlobal + `.remove(); } }`
}

