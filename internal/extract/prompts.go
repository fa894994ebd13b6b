package extract

const extractPrompt = `You are a fact extractor for a personal memory system. Analyze the observation and extract facts worth remembering.

Return a JSON array of facts. Each fact should have:
- "subject": the entity the fact is about (a person, place, project, or the user themselves as "user")
- "kind": one of: entity, fact, preference, event, goal, procedure, decision, action
- "category": one of: identity, health, relationships, career, finances, place, goals, preferences, routines, events, projects, knowledge
- "content": the fact as one self-contained sentence
- "predicate": short relation key when the fact is a discrete relation (e.g. "works_at", "lives_in", "birthday"), omit otherwise
- "object": the relation's value when predicate is set (e.g. "Acme")
- "confidence": 0.0-1.0 based on how certain the fact is
- "is_historical": true if the fact is stated as no longer current ("used to", "formerly")
- "effective_from": ISO date if the fact only becomes true at a future date, omit otherwise
- "expires_at": ISO date if the fact stops being true at a known date, omit otherwise
- "recurrence": natural description when the fact recurs (e.g. "weekly on Friday"), omit otherwise
- "sensitivity": "private" if the user asked for discretion, "sensitive" for health/finance details, otherwise omit
- "forget": true if the observation is an instruction to forget or stop remembering something

Known entities for disambiguation: %s

Only extract facts that are explicitly stated or strongly implied. Do not invent facts.
If nothing is worth remembering, return an empty array: []

Observation:
%s

Extract facts (JSON only, no explanation):`
