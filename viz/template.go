package viz

import "html/template"

var pageTemplate = template.Must(template.New("starmap").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>GDELT Stars - Interactive Visualization</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            background: #000000;
            color: #ffffff;
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            overflow: hidden;
            width: 100vw;
            height: 100vh;
        }

        #canvas {
            display: block;
            width: 100%;
            height: 100%;
            cursor: crosshair;
        }

        #info-panel {
            position: fixed;
            top: 20px;
            left: 20px;
            background: rgba(0, 0, 0, 0.85);
            border: 1px solid rgba(255, 255, 255, 0.2);
            border-radius: 8px;
            padding: 20px;
            max-width: 300px;
            backdrop-filter: blur(10px);
            z-index: 100;
        }

        #info-panel h1 {
            font-size: 18px;
            margin-bottom: 10px;
            color: #4ECDC4;
        }

        #info-panel p {
            font-size: 12px;
            line-height: 1.6;
            color: #cccccc;
            margin-bottom: 5px;
        }

        #tooltip {
            position: fixed;
            background: rgba(0, 0, 0, 0.95);
            border: 1px solid rgba(255, 255, 255, 0.3);
            border-radius: 6px;
            padding: 12px 16px;
            pointer-events: none;
            display: none;
            z-index: 1000;
            max-width: 400px;
            box-shadow: 0 4px 20px rgba(0, 0, 0, 0.5);
        }

        #tooltip.visible {
            display: block;
        }

        #tooltip .title {
            font-size: 14px;
            font-weight: 600;
            margin-bottom: 8px;
            color: #ffffff;
            line-height: 1.4;
        }

        #tooltip .meta {
            font-size: 11px;
            color: #999999;
            margin-bottom: 4px;
        }

        #tooltip .keywords {
            font-size: 12px;
            color: #4ECDC4;
            margin-top: 8px;
            padding-top: 8px;
            border-top: 1px solid rgba(255, 255, 255, 0.1);
        }

        #controls {
            position: fixed;
            top: 20px;
            right: 20px;
            background: rgba(0, 0, 0, 0.85);
            border: 1px solid rgba(255, 255, 255, 0.2);
            border-radius: 8px;
            padding: 15px;
            backdrop-filter: blur(10px);
            z-index: 100;
        }

        #controls button {
            background: rgba(78, 205, 196, 0.2);
            border: 1px solid #4ECDC4;
            color: #4ECDC4;
            padding: 8px 16px;
            border-radius: 4px;
            cursor: pointer;
            font-size: 12px;
            margin-bottom: 8px;
            width: 100%;
            transition: all 0.2s;
        }

        #controls button:hover {
            background: rgba(78, 205, 196, 0.4);
        }

        #controls button.active {
            background: rgba(78, 205, 196, 0.5);
            color: #ffffff;
        }

        #controls .group-label {
            font-size: 10px;
            color: #999999;
            text-transform: uppercase;
            letter-spacing: 1px;
            margin: 8px 0 6px;
        }

        #legend {
            position: fixed;
            bottom: 20px;
            left: 20px;
            background: rgba(0, 0, 0, 0.85);
            border: 1px solid rgba(255, 255, 255, 0.2);
            border-radius: 8px;
            padding: 15px;
            max-width: 340px;
            max-height: 40vh;
            overflow-y: auto;
            backdrop-filter: blur(10px);
            z-index: 100;
            font-size: 11px;
        }

        #legend .legend-row {
            display: flex;
            align-items: center;
            margin-bottom: 5px;
            color: #cccccc;
        }

        #legend .swatch {
            display: inline-block;
            width: 10px;
            height: 10px;
            border-radius: 50%;
            margin-right: 8px;
            flex-shrink: 0;
        }

        #legend #tone-bar {
            height: 12px;
            border-radius: 6px;
            background: linear-gradient(to right, #FF6B6B, #4ECDC4);
            margin-bottom: 4px;
            width: 200px;
        }

        #legend #tone-labels {
            display: flex;
            justify-content: space-between;
            width: 200px;
            color: #999999;
        }
    </style>
</head>
<body>
    <canvas id="canvas"></canvas>

    <div id="info-panel">
        <h1>GDELT Stars</h1>
        <p><strong>Total Events:</strong> <span id="total-events">0</span></p>
        <p><strong>Clusters:</strong> <span id="total-clusters">0</span></p>
        <p><strong>Focus:</strong> {{.DominantLocation}}</p>
        <p><strong>Top Keywords:</strong> {{.TopKeywords}}</p>
        <p style="margin-top: 10px; font-size: 11px;">Hover over stars to see details. Scroll to zoom. Drag to pan. Click to open the source.</p>
    </div>

    <div id="controls">
        <button onclick="resetView()">Reset View</button>
        <button onclick="toggleWords()">Toggle Words</button>
        <div class="group-label">Color by</div>
        <button id="mode-cluster" class="active" onclick="setColorMode('cluster')">Cluster</button>
        <button id="mode-tone" onclick="setColorMode('tone')">Tone</button>
        <button id="mode-topic" onclick="setColorMode('topic')">Topic</button>
    </div>

    <div id="legend"></div>

    <div id="tooltip">
        <div class="title"></div>
        <div class="meta"></div>
        <div class="keywords"></div>
    </div>

    <script>
        const data = {{.Points}};
        const colors = {{.Colors}};
        const rootNames = {{.RootNames}};

        const canvas = document.getElementById('canvas');
        const ctx = canvas.getContext('2d');
        const tooltip = document.getElementById('tooltip');

        let width = window.innerWidth;
        let height = window.innerHeight;
        let scale = 1;
        let offsetX = 0;
        let offsetY = 0;
        let isDragging = false;
        let lastMouseX = 0;
        let lastMouseY = 0;
        let showWords = true;
        let colorMode = 'cluster';

        canvas.width = width * window.devicePixelRatio;
        canvas.height = height * window.devicePixelRatio;
        canvas.style.width = width + 'px';
        canvas.style.height = height + 'px';
        ctx.scale(window.devicePixelRatio, window.devicePixelRatio);

        window.addEventListener('resize', () => {
            width = window.innerWidth;
            height = window.innerHeight;
            canvas.width = width * window.devicePixelRatio;
            canvas.height = height * window.devicePixelRatio;
            canvas.style.width = width + 'px';
            canvas.style.height = height + 'px';
            ctx.scale(window.devicePixelRatio, window.devicePixelRatio);
            draw();
        });

        function worldToScreen(x, y) {
            return {
                x: (x * width + offsetX) * scale,
                y: (y * height + offsetY) * scale
            };
        }

        function screenToWorld(x, y) {
            return {
                x: (x / scale - offsetX) / width,
                y: (y / scale - offsetY) / height
            };
        }

        function toneColor(goldstein) {
            const t = (Math.max(-10, Math.min(10, goldstein)) + 10) / 20;
            const r = Math.round(255 + (78 - 255) * t);
            const g = Math.round(107 + (205 - 107) * t);
            const b = Math.round(107 + (196 - 107) * t);
            return 'rgb(' + r + ', ' + g + ', ' + b + ')';
        }

        function rootColor(root) {
            const n = parseInt(root, 10);
            if (isNaN(n)) {
                return '#888888';
            }
            return colors[n % colors.length];
        }

        function pointColor(point) {
            if (colorMode === 'tone') {
                return toneColor(point.goldstein);
            }
            if (colorMode === 'topic') {
                return rootColor(point.root);
            }
            return colors[point.cluster % colors.length];
        }

        function calculateClusterCenters() {
            const clusters = {};

            data.forEach(point => {
                if (!clusters[point.cluster]) {
                    clusters[point.cluster] = {
                        x: 0,
                        y: 0,
                        count: 0,
                        keywords: point.keywords,
                        color: colors[point.cluster % colors.length]
                    };
                }
                clusters[point.cluster].x += point.x;
                clusters[point.cluster].y += point.y;
                clusters[point.cluster].count += 1;
            });

            Object.keys(clusters).forEach(key => {
                clusters[key].x /= clusters[key].count;
                clusters[key].y /= clusters[key].count;
            });

            return clusters;
        }

        const clusterCenters = calculateClusterCenters();

        function draw() {
            ctx.clearRect(0, 0, width, height);

            data.forEach(point => {
                const screen = worldToScreen(point.x, point.y);

                if (screen.x < -10 || screen.x > width + 10 ||
                    screen.y < -10 || screen.y > height + 10) {
                    return;
                }

                const color = pointColor(point);
                const size = Math.max(2, 3 * scale);
                const glowSize = Math.max(4, 8 * scale);

                ctx.save();
                ctx.globalAlpha = 0.3;
                ctx.fillStyle = color;
                ctx.beginPath();
                ctx.arc(screen.x, screen.y, glowSize, 0, Math.PI * 2);
                ctx.fill();
                ctx.restore();

                ctx.fillStyle = color;
                ctx.beginPath();
                ctx.arc(screen.x, screen.y, size, 0, Math.PI * 2);
                ctx.fill();

                if (scale > 1.5) {
                    const pulseSize = size + Math.sin(Date.now() / 500 + point.x * 100) * 0.5;
                    ctx.save();
                    ctx.globalAlpha = 0.5;
                    ctx.strokeStyle = color;
                    ctx.lineWidth = 1;
                    ctx.beginPath();
                    ctx.arc(screen.x, screen.y, pulseSize * 2, 0, Math.PI * 2);
                    ctx.stroke();
                    ctx.restore();
                }
            });

            if (showWords) {
                Object.keys(clusterCenters).forEach(clusterId => {
                    const cluster = clusterCenters[clusterId];
                    const screen = worldToScreen(cluster.x, cluster.y);

                    if (screen.x < -100 || screen.x > width + 100 ||
                        screen.y < -100 || screen.y > height + 100) {
                        return;
                    }

                    const keywords = cluster.keywords.split(',').map(k => k.trim());
                    const fontSize = Math.max(12, Math.min(24, 16 * scale));

                    ctx.save();
                    ctx.font = fontSize + "px -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif";
                    ctx.textAlign = 'center';
                    ctx.textBaseline = 'middle';

                    keywords.forEach((keyword, i) => {
                        if (keyword) {
                            const yOffset = (i - keywords.length / 2) * (fontSize + 4);

                            ctx.shadowColor = 'rgba(0, 0, 0, 0.8)';
                            ctx.shadowBlur = 8;
                            ctx.fillStyle = cluster.color;
                            ctx.globalAlpha = 0.7;

                            ctx.fillText(keyword.toUpperCase(), screen.x, screen.y + yOffset);
                        }
                    });

                    ctx.restore();
                });
            }
        }

        function findPointAtPosition(mouseX, mouseY) {
            const threshold = 10;
            let closest = null;
            let closestDist = threshold;

            data.forEach(point => {
                const screen = worldToScreen(point.x, point.y);
                const dist = Math.sqrt(
                    Math.pow(screen.x - mouseX, 2) +
                    Math.pow(screen.y - mouseY, 2)
                );

                if (dist < closestDist) {
                    closestDist = dist;
                    closest = point;
                }
            });

            return closest;
        }

        canvas.addEventListener('mousemove', (e) => {
            const rect = canvas.getBoundingClientRect();
            const mouseX = e.clientX - rect.left;
            const mouseY = e.clientY - rect.top;

            if (isDragging) {
                const dx = mouseX - lastMouseX;
                const dy = mouseY - lastMouseY;
                offsetX += dx / scale;
                offsetY += dy / scale;
                lastMouseX = mouseX;
                lastMouseY = mouseY;
                draw();
            } else {
                const point = findPointAtPosition(mouseX, mouseY);

                if (point) {
                    tooltip.querySelector('.title').textContent = point.title;
                    tooltip.querySelector('.meta').textContent =
                        'Date: ' + point.date + ' | Cluster: ' + point.cluster +
                        ' | Topic: ' + (rootNames[point.root] || point.root || 'Unknown') +
                        ' | Tone: ' + point.goldstein.toFixed(2);
                    tooltip.querySelector('.keywords').textContent =
                        'Keywords: ' + point.keywords;

                    tooltip.style.left = (e.clientX + 15) + 'px';
                    tooltip.style.top = (e.clientY + 15) + 'px';
                    tooltip.classList.add('visible');

                    canvas.style.cursor = 'pointer';
                } else {
                    tooltip.classList.remove('visible');
                    canvas.style.cursor = isDragging ? 'grabbing' : 'crosshair';
                }
            }
        });

        canvas.addEventListener('mousedown', (e) => {
            isDragging = true;
            const rect = canvas.getBoundingClientRect();
            lastMouseX = e.clientX - rect.left;
            lastMouseY = e.clientY - rect.top;
            canvas.style.cursor = 'grabbing';
        });

        canvas.addEventListener('mouseup', () => {
            isDragging = false;
            canvas.style.cursor = 'crosshair';
        });

        canvas.addEventListener('mouseleave', () => {
            isDragging = false;
            tooltip.classList.remove('visible');
            canvas.style.cursor = 'crosshair';
        });

        canvas.addEventListener('wheel', (e) => {
            e.preventDefault();
            const rect = canvas.getBoundingClientRect();
            const mouseX = e.clientX - rect.left;
            const mouseY = e.clientY - rect.top;

            const world = screenToWorld(mouseX, mouseY);

            const zoomFactor = e.deltaY > 0 ? 0.9 : 1.1;
            const newScale = Math.max(0.5, Math.min(10, scale * zoomFactor));

            scale = newScale;

            const newWorld = screenToWorld(mouseX, mouseY);
            offsetX += (world.x - newWorld.x) * width;
            offsetY += (world.y - newWorld.y) * height;

            draw();
        });

        canvas.addEventListener('click', (e) => {
            const rect = canvas.getBoundingClientRect();
            const mouseX = e.clientX - rect.left;
            const mouseY = e.clientY - rect.top;
            const point = findPointAtPosition(mouseX, mouseY);

            if (point && point.url) {
                window.open(point.url, '_blank');
            }
        });

        function resetView() {
            scale = 1;
            offsetX = 0;
            offsetY = 0;
            draw();
        }

        function toggleWords() {
            showWords = !showWords;
            draw();
        }

        function setColorMode(mode) {
            colorMode = mode;
            ['cluster', 'tone', 'topic'].forEach(m => {
                document.getElementById('mode-' + m).classList.toggle('active', m === mode);
            });
            updateLegend();
            draw();
        }

        function legendRow(color, label) {
            const row = document.createElement('div');
            row.className = 'legend-row';
            const swatch = document.createElement('span');
            swatch.className = 'swatch';
            swatch.style.background = color;
            const text = document.createElement('span');
            text.textContent = label;
            row.appendChild(swatch);
            row.appendChild(text);
            return row;
        }

        function updateLegend() {
            const legend = document.getElementById('legend');
            legend.textContent = '';

            if (colorMode === 'cluster') {
                Object.keys(clusterCenters).sort((a, b) => a - b).forEach(id => {
                    const cluster = clusterCenters[id];
                    legend.appendChild(legendRow(cluster.color, id + ': ' + cluster.keywords));
                });
            } else if (colorMode === 'tone') {
                const bar = document.createElement('div');
                bar.id = 'tone-bar';
                legend.appendChild(bar);
                const labels = document.createElement('div');
                labels.id = 'tone-labels';
                ['-10', '0', '+10'].forEach(l => {
                    const span = document.createElement('span');
                    span.textContent = l;
                    labels.appendChild(span);
                });
                legend.appendChild(labels);
            } else {
                [...new Set(data.map(d => d.root))].sort().forEach(root => {
                    const name = rootNames[root] || 'Other';
                    legend.appendChild(legendRow(rootColor(root), root + ' ' + name));
                });
            }
        }

        function initStats() {
            const clusters = [...new Set(data.map(d => d.cluster))].sort((a, b) => a - b);
            document.getElementById('total-events').textContent = data.length;
            document.getElementById('total-clusters').textContent = clusters.length;
        }

        function animate() {
            draw();
            requestAnimationFrame(animate);
        }

        initStats();
        updateLegend();
        animate();
    </script>
</body>
</html>
`
