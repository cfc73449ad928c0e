package llm

import "fmt"

// fallbackResult is the deterministic offline reply used when the runtime is
// unreachable: a canned explanation naming the requested language, a minimal
// starter document for it as the code, and the language echoed back unchanged.
// Built with zero network dependency so the UI stays usable without Ollama.
func fallbackResult(language string) Result {
	return Result{
		Response: fmt.Sprintf("I understand you want to build something with %s. "+
			"The AI server isn't running, so here's a simple starter to get you going. "+
			"Install and start Ollama to get the full AI experience.", language),
		Code:     starterDocument(language),
		Language: language,
	}
}

// starterDocument returns a minimal valid starter for the language.
// Unknown languages get the HTML starter.
func starterDocument(language string) string {
	switch language {
	case "css":
		return starterCSS
	case "javascript", "js":
		return starterJS
	case "react", "jsx":
		return starterReact
	default:
		return starterHTML
	}
}

const starterHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>My Project</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            margin: 0;
            padding: 20px;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
        }
        .container {
            max-width: 800px;
            margin: 0 auto;
            text-align: center;
        }
        h1 {
            font-size: 3rem;
            margin-bottom: 1rem;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Welcome to My Project</h1>
        <p>Start building amazing things with Develove!</p>
    </div>
</body>
</html>`

const starterCSS = `body {
    font-family: Arial, sans-serif;
    margin: 0;
    padding: 20px;
    background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
    color: white;
}

.container {
    max-width: 800px;
    margin: 0 auto;
    text-align: center;
}`

const starterJS = `document.addEventListener('DOMContentLoaded', () => {
    const heading = document.createElement('h1');
    heading.textContent = 'Welcome to My Project';
    document.body.appendChild(heading);
});`

const starterReact = `export default function App() {
    return (
        <div className="container">
            <h1>Welcome to My Project</h1>
            <p>Start building amazing things with Develove!</p>
        </div>
    );
}`
