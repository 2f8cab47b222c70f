package patterns

// =============================================================================
// BUILT-IN SEED PATTERN SET
// Deployments override these by pointing BASTION_PATTERN_DIR at YAML files;
// the seeds exist so the gateway is never blind on a fresh install.
// =============================================================================

func seedPatterns() []*Pattern {
	var all []*Pattern
	add := func(name, expr string, cat Category, severity int, description string) {
		all = append(all, mustCompile(name, expr, cat, severity, description))
	}

	// --- CREDENTIALS (hard DLP) ---
	add("aws_access_key", `AKIA[0-9A-Z]{16}`, CategoryCredential, 90, "AWS Access Key ID")
	add("aws_secret", `(?i)aws_secret_access_key\s*[=:]\s*['"]?[A-Za-z0-9/+=]{40}`, CategoryCredential, 90, "AWS Secret Access Key")
	add("gcp_api_key", `AIza[0-9A-Za-z\-_]{35}`, CategoryCredential, 85, "Google API Key")
	add("github_token", `(?i)gh[oprsu]_[0-9a-zA-Z]{36}`, CategoryCredential, 85, "GitHub token")
	add("gitlab_token", `glpat-[a-zA-Z0-9\-_]{20,}`, CategoryCredential, 85, "GitLab personal access token")
	add("slack_token", `xox[bp]-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24}`, CategoryCredential, 85, "Slack token")
	add("stripe_live_key", `(?i)(sk|rk)_live_[0-9a-zA-Z]{24}`, CategoryCredential, 90, "Stripe live key")
	add("openai_api_key", `sk-(proj-)?[A-Za-z0-9_\-]{20,}`, CategoryCredential, 90, "OpenAI API Key")
	add("anthropic_api_key", `sk-ant-api[0-9]{2}-[A-Za-z0-9_\-]{20,}`, CategoryCredential, 90, "Anthropic API Key")
	add("huggingface_token", `hf_[A-Za-z0-9]{20,}`, CategoryCredential, 80, "HuggingFace token")
	add("npm_token", `npm_[a-zA-Z0-9]{36}`, CategoryCredential, 80, "npm token")
	add("sendgrid_api_key", `SG\.[a-zA-Z0-9_-]{22}\.[a-zA-Z0-9_-]{43}`, CategoryCredential, 85, "SendGrid API Key")
	add("jwt_token", `eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+`, CategoryCredential, 75, "JWT token")
	add("private_key_block", `-----BEGIN\s+(RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY`, CategoryCredential, 95, "Private key block")
	add("db_uri_with_creds", `(?i)(postgres(ql)?|mysql|mongodb(\+srv)?|amqp)://[^:/\s]+:[^@\s]+@`, CategoryCredential, 85, "Database URI with credentials")
	add("redis_uri_with_pass", `(?i)redis://:[^@\s]+@`, CategoryCredential, 85, "Redis URI with password")
	add("basic_auth_header", `(?i)authorization:\s*basic\s+[A-Za-z0-9+/=]{8,}`, CategoryCredential, 80, "Basic Auth header")
	add("bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-\.]{20,}`, CategoryCredential, 75, "Bearer token")
	add("password_assign", `(?i)password\s*[=:]\s*['"][^\s'"]{8,}['"]`, CategoryCredential, 70, "Password assignment")

	// --- PII (hard DLP) ---
	add("ssn", `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`, CategoryPII, 90, "US Social Security Number")
	add("cc_visa", `\b4[0-9]{12}(?:[0-9]{3})?\b`, CategoryPII, 95, "Visa card number")
	add("cc_mastercard", `\b5[1-5][0-9]{14}\b`, CategoryPII, 95, "Mastercard number")
	add("cc_amex", `\b3[47][0-9]{13}\b`, CategoryPII, 95, "American Express number")
	add("email_address", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, CategoryPII, 50, "Email address")

	// --- PROMPT INJECTION (heuristic) ---
	add("inj_ignore_previous", `(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`, CategoryPromptInjection, 85, "Instruction override")
	add("inj_disregard", `(?i)disregard\s+(all\s+)?(prior|previous|your)\s+(instructions|guidelines|rules)`, CategoryPromptInjection, 80, "Disregard instructions")
	add("inj_new_instructions", `(?i)your\s+new\s+instructions\s+are`, CategoryPromptInjection, 80, "New instruction injection")
	add("inj_forget", `(?i)forget\s+(everything|all)\s+(you|above|before)`, CategoryPromptInjection, 70, "Forget context")
	add("inj_system_tag", `(?i)\[/?system\]|</?system>`, CategoryPromptInjection, 65, "System tag injection")
	add("inj_override_safety", `(?i)(override|bypass|disable)\s+(your\s+)?(safety|security|content)\s+(filter|polic|constraint|guideline)`, CategoryPromptInjection, 85, "Safety override request")
	add("inj_execute_following", `(?i)execute\s+the\s+following\s+(command|instruction)`, CategoryPromptInjection, 60, "Execute command marker")

	// --- JAILBREAK (heuristic) ---
	add("jb_evil_persona", `(?i)you\s+are\s+now\s+(a|an|the)?\s*(evil|unrestricted|unfiltered|jailbroken)`, CategoryJailbreak, 80, "Unrestricted persona injection")
	add("jb_no_restrictions", `(?i)act\s+as\s+if\s+you\s+have\s+no\s+(restrictions|rules|limits)`, CategoryJailbreak, 75, "No restrictions prompt")
	add("jb_pretend_attacker", `(?i)pretend\s+(you\s+are|to\s+be)\s+(a|an)?\s*(hacker|attacker|criminal)`, CategoryJailbreak, 75, "Attacker persona")
	add("jb_dan", `(?i)\bDAN\b.*\bmode\b`, CategoryJailbreak, 70, "DAN jailbreak")
	add("jb_developer_mode", `(?i)(developer|jailbreak)\s+mode`, CategoryJailbreak, 70, "Developer mode jailbreak")
	add("jb_hypothetical_harm", `(?i)hypothetically.{0,40}(how\s+(would|to)|steps\s+to).{0,60}(hack|exploit|steal|malware|payload)`, CategoryJailbreak, 70, "Hypothetical framing of harm")
	add("jb_write_malware", `(?i)(write|create|generate|build)\s+(a\s+|some\s+)?(malware|ransomware|keylogger|virus|exploit\s+code|malicious\s+payload)`, CategoryJailbreak, 85, "Malware authoring request")

	// --- PROMPT EXTRACTION (heuristic) ---
	add("ext_reveal_prompt", `(?i)reveal\s+(your|the)\s+(system\s+)?prompt`, CategoryPromptExtraction, 80, "Reveal system prompt")
	add("ext_show_prompt", `(?i)(show|output|print)\s+(me\s+)?your\s+(system\s+)?(prompt|instructions)`, CategoryPromptExtraction, 80, "Show system prompt")
	add("ext_repeat_above", `(?i)repeat\s+(everything|all|the\s+words)\s+(above|before)`, CategoryPromptExtraction, 75, "Repeat preamble")
	add("ext_what_instructions", `(?i)what\s+(is|are)\s+your\s+(system\s+prompt|instructions)`, CategoryPromptExtraction, 70, "Ask for instructions")

	// --- ROLEPLAY (heuristic) ---
	add("rp_fiction_frame", `(?i)writing\s+.{0,40}(novel|story|screenplay|script)\s+.{0,60}(antagonist|villain|hacker|payload)`, CategoryRoleplay, 65, "Fiction framing of attack content")
	add("rp_character_needs", `(?i)(my|the)\s+character\s+(needs?|wants?|must)\s+to\s+(explain|describe|demonstrate)`, CategoryRoleplay, 55, "Character framing")
	add("rp_stay_in_character", `(?i)stay\s+in\s+character\s+no\s+matter\s+what`, CategoryRoleplay, 60, "Persona lock-in")

	return all
}
