// Combines signal checker results for a link in to a single threat score and tier.
package threat
