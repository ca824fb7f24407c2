package analysis

// Prompt templates for the extraction branches. Each asks for a bare JSON
// array so the two-tier parser in parse.go can do its work.

const topicPromptTemplate = `You are an assistant that summarizes group chat conversations.
Analyze the chat transcript below and extract at most %d major discussion topics.

For each topic provide:
1. A short, specific topic title.
2. The main participants (at most 5, using the names as they appear in the transcript).
3. A detailed description covering the key points and any conclusion reached.

Guidelines:
- Be concrete: a reader should learn the substance of the discussion from the
  description alone, not just that a discussion happened.
- Attribute points to the participants who made them.
- Where the conversation reached a conclusion, state it.

Chat transcript:
%s

Return ONLY a JSON array in exactly this shape, with standard double quotes,
no markdown fences, and no text outside the array:
[
  {"topic": "topic title", "contributors": ["name1", "name2"], "detail": "description"}
]`

const titlePromptTemplate = `Assign each of the following group members a fitting title and an MBTI type.
Each member gets exactly one title and each title goes to at most one member.

Available titles (extend the list if someone clearly deserves something else):
- prolific poster: posts constantly, keeps the chat alive
- night owl: most active in the small hours
- long-form writer: writes long, considered messages
- engager: frequently replies to others
- emoji armory: communicates mostly in emoji
- topic starter: opens new threads of discussion
- opinion leader: others respond to and build on their messages

Member data:
%s

Return ONLY a JSON array in exactly this shape:
[
  {"name": "member name", "user_id": "123456789", "title": "title", "mbti": "MBTI type", "reason": "why this title fits"}
]`

const quotePromptTemplate = `From the chat transcript below, pick up to %d standout "golden quotes":
original, surprising, or strikingly funny messages that a reader would remember.
Prefer messages with an unexpected angle, an absurd-but-deadpan argument, or a
conclusion that subverts common sense. Skip plain meme references and filler.

For each quote provide the original text, the sender's name, and why it stands out.

Chat transcript:
%s

Return ONLY a JSON array in exactly this shape:
[
  {"content": "quote text", "sender": "name", "reason": "why this quote stands out"}
]`
