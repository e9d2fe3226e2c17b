package orchestrator

const analystSystemPrompt = `You are a media analytics investigator. You study why a video statistically over-performed its channel baseline and explain the cause with evidence. Always answer with a single JSON object and nothing else.`

const hypothesisPrompt = `Video context:
%s

Propose the most plausible causal explanation for this video's overperformance.

Respond with JSON:
{"statement": "<one-sentence causal hypothesis>", "confidence": <0.0-1.0>, "supporting_evidence": ["<observation>", ...]}`

const summaryPrompt = `Completed analysis state:
%s

Write a concise report of the findings: the validated pattern (if any), the strength of the evidence, and what remains uncertain.

Respond with JSON:
{"summary": "<3-5 sentence report>"}`

const strictJSONSuffix = `

Return ONLY the JSON object. No prose, no markdown fences.`
