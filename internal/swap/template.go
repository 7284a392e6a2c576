package swap

// chainsMarker is replaced with the quoted chain names before extraction.
const chainsMarker = "SUPPORTED_CHAINS"

const swapTemplate = `Given the recent messages and wallet information below:

{{recentMessages}}

Extract the following information about the requested token swap:
- Input token address (the token being sold)
- Output token address (the token being bought)
- Amount to swap, as an integer in the input token's smallest unit
- Chain to execute on, one of: SUPPORTED_CHAINS
- Slippage as a fraction (optional, e.g. 0.005 for 0.5%)

Respond with a JSON markdown block containing only the extracted values. Use null for any values that cannot be determined:

` + "```json" + `
{
    "fromToken": string | null,
    "toToken": string | null,
    "amount": string | null,
    "chain": SUPPORTED_CHAINS,
    "slippage": number | null
}
` + "```"
